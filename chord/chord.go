package chord

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/leadsheet/model"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	ErrNoRoot        = errors.New("chord has no root")
	ErrInvalidSymbol = errors.New("invalid chord symbol")
)

var noteOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Semitone returns the pitch class of a note name such as "Bb" or "F#".
func Semitone(note string) (int, error) {
	if note == "" {
		return 0, ErrNoRoot
	}
	off, ok := noteOffsets[note[0]]
	if !ok {
		return 0, fmt.Errorf("%w: note %q", ErrInvalidSymbol, note)
	}
	for _, c := range note[1:] {
		switch c {
		case '#':
			off++
		case 'b':
			off--
		default:
			return 0, fmt.Errorf("%w: note %q", ErrInvalidSymbol, note)
		}
	}
	return (off + 12) % 12, nil
}

// Parse reads a chord symbol as typed by a user, e.g. "Bb-7/F".
func Parse(symbol string) (model.Chord, error) {
	var c model.Chord
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return c, fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if _, ok := noteOffsets[symbol[0]]; !ok {
		return c, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if i := strings.LastIndexByte(symbol, '/'); i > 0 {
		c.Bass = symbol[i+1:]
		if _, err := Semitone(c.Bass); err != nil {
			return c, err
		}
		symbol = symbol[:i]
	}
	n := 1
	if len(symbol) > 1 && (symbol[1] == '#' || symbol[1] == 'b') {
		n = 2
	}
	c.Root, c.Quality = symbol[:n], symbol[n:]
	return c, nil
}

// Intervals returns the semitones above the root sounded by a quality
// string. Unknown characters are ignored.
func Intervals(quality string) []int {
	third, fifth, seventh := 4, 7, -1
	set := make(map[int]bool)
	dim, six := false, false

	q := quality
	switch {
	case strings.HasPrefix(q, "-"):
		third = 3
		q = q[1:]
	case strings.HasPrefix(q, "o"):
		third, fifth, dim = 3, 6, true
		q = q[1:]
	case strings.HasPrefix(q, "h"):
		third, fifth, seventh = 3, 6, 10
		q = q[1:]
	case strings.HasPrefix(q, "+"):
		fifth = 8
		q = q[1:]
	}
	if strings.HasPrefix(q, "^") {
		seventh = 11
		q = q[1:]
	}
	dominant := func() {
		if seventh < 0 && !six {
			seventh = 10
			if dim {
				seventh = 9
			}
		}
	}

	for i := 0; i < len(q); {
		rest := q[i:]
		switch {
		case strings.HasPrefix(rest, "alt"):
			dominant()
			fifth = -1
			set[13], set[15], set[20] = true, true, true
			i += 3
		case strings.HasPrefix(rest, "sus"):
			third = 5
			i += 3
			if i < len(q) && q[i] == '2' {
				third = 2
				i++
			} else if i < len(q) && q[i] == '4' {
				i++
			}
		case strings.HasPrefix(rest, "add"):
			n, w := degree(q[i+3:])
			if w > 0 {
				set[semitones(n)] = true
			}
			i += 3 + w
		case rest[0] == 'b' || rest[0] == '#':
			n, w := degree(rest[1:])
			if w == 0 {
				i++
				continue
			}
			shift := 1
			if rest[0] == 'b' {
				shift = -1
			}
			if n == 5 {
				fifth = 7 + shift
			} else {
				set[semitones(n)+shift] = true
			}
			i += 1 + w
		case rest[0] >= '0' && rest[0] <= '9':
			n, w := degree(rest)
			switch n {
			case 5:
				if i == 0 && quality == "5" {
					third = -1
				}
			case 6:
				six = true
				set[9] = true
			case 7:
				dominant()
			case 9:
				dominant()
				set[14] = true
			case 11:
				dominant()
				set[14], set[17] = true, true
			case 13:
				dominant()
				set[14], set[21] = true, true
			case 2:
				set[14] = true
			case 4:
				set[17] = true
			}
			i += w
		default:
			i++
		}
	}

	set[0] = true
	for _, v := range []int{third, fifth, seventh} {
		if v >= 0 {
			set[v] = true
		}
	}
	res := make([]int, 0, len(set))
	for v := range set {
		res = append(res, v)
	}
	sort.Ints(res)
	return res
}

// degree reads a scale degree at the start of s. 11 and 13 are read whole,
// anything else is a single digit so that "69" is a six then a nine.
func degree(s string) (int, int) {
	if strings.HasPrefix(s, "11") || strings.HasPrefix(s, "13") {
		return 10 + int(s[1]-'0'), 2
	}
	if s != "" && s[0] >= '1' && s[0] <= '9' {
		return int(s[0] - '0'), 1
	}
	return 0, 0
}

// semitones maps a scale degree of the major scale to semitones above the
// root, compound degrees included.
func semitones(degree int) int {
	steps := []int{0, 2, 4, 5, 7, 9, 11}
	d := degree - 1
	return 12*(d/7) + steps[d%7]
}

// Notes voices c as MIDI note numbers with the root in the given octave
// (C4 = 60). A bass note is placed one octave below.
func Notes(c model.Chord, octave int) ([]uint8, error) {
	root, err := Semitone(c.Root)
	if err != nil {
		return nil, err
	}
	base := (octave+1)*12 + root

	var res []uint8
	if c.Bass != "" {
		b, err := Semitone(c.Bass)
		if err != nil {
			return nil, err
		}
		if n := octave*12 + b; n >= 0 && n <= 127 {
			res = append(res, uint8(n))
		}
	}
	for _, iv := range Intervals(c.Quality) {
		if n := base + iv; n >= 0 && n <= 127 {
			res = append(res, uint8(n))
		}
	}
	return res, nil
}

// PitchClasses returns the sorted, distinct pitch classes of c.
func PitchClasses(c model.Chord) ([]uint8, error) {
	notes, err := Notes(c, 4)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint8]bool)
	var res []uint8
	for _, n := range notes {
		pc := n % 12
		if !seen[pc] {
			seen[pc] = true
			res = append(res, pc)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

// Key is the search key of c: its pitch classes joined by "-". Enharmonic
// spellings share a key.
func Key(c model.Chord) (string, error) {
	pcs, err := PitchClasses(c)
	if err != nil {
		return "", err
	}
	return CreateChordKey(pcs), nil
}

// KeyOfNotes is the search key of a set of MIDI notes, such as the keys held
// down on a controller.
func KeyOfNotes(notes []uint8) string {
	seen := make(map[uint8]bool)
	var pcs []uint8
	for _, n := range notes {
		if pc := n % 12; !seen[pc] {
			seen[pc] = true
			pcs = append(pcs, pc)
		}
	}
	return CreateChordKey(pcs)
}

func CreateChordKey(notes []uint8) string {
	sort.Slice(notes, func(i, j int) bool {
		return notes[i] < notes[j]
	})
	var res strings.Builder
	for i, note := range notes {
		fmt.Fprintf(&res, "%v", note)
		if i < len(notes)-1 {
			res.WriteString("-")
		}
	}
	return res.String()
}

// Sounding is a set of notes held together in a MIDI file, starting at Tick.
type Sounding struct {
	Tick  int64
	Notes []uint8
}

type reducedEvent struct {
	tick      int64
	isNoteOff bool
	note      uint8
}

func held(pressed map[uint8]bool, tick int64) Sounding {
	s := Sounding{Tick: tick}
	for note := range pressed {
		s.Notes = append(s.Notes, note)
	}
	sort.Slice(s.Notes, func(i, j int) bool { return s.Notes[i] < s.Notes[j] })
	return s
}

// GetChords collects the note sets sounding in s, ordered by tick. Notes
// released and pressed on the same tick produce a single set.
func GetChords(s *smf.SMF) []Sounding {
	var events []reducedEvent
	for _, track := range s.Tracks {
		var absTicks int64
		for _, event := range track {
			absTicks += int64(event.Delta)
			var channel, key, velocity uint8
			msg := midi.Message(event.Message)
			switch {
			case msg.GetNoteStart(&channel, &key, &velocity):
				events = append(events, reducedEvent{tick: absTicks, note: key})
			// NOTE: includes note on with velocity 0
			case msg.GetNoteEnd(&channel, &key):
				events = append(events, reducedEvent{tick: absTicks, isNoteOff: true, note: key})
			}
		}
	}

	// prioritize smaller ticks then note off
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].isNoteOff && !events[j].isNoteOff
	})

	var res []Sounding
	pressed := make(map[uint8]bool)
	for i, evt := range events {
		if evt.isNoteOff {
			delete(pressed, evt.note)
		} else {
			pressed[evt.note] = true
		}
		last := i == len(events)-1 || events[i+1].tick != evt.tick
		if last && len(pressed) > 0 {
			res = append(res, held(pressed, evt.tick))
		}
	}
	return res
}
