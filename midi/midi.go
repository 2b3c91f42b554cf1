package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jsphweid/leadsheet/chord"
	"github.com/jsphweid/leadsheet/model"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

var ErrNothingToPlay = errors.New("song has no playable measures")

type Options struct {
	Octave          int
	BPM             float64
	Velocity        uint8
	Channel         uint8
	TicksPerQuarter uint16
}

func DefaultOptions() Options {
	return Options{Octave: 4, BPM: 120, Velocity: 90, TicksPerQuarter: 480}
}

// step is one slot of a measure: a chord to sound, a rest, or a hold of
// whatever is sounding.
type step struct {
	notes []uint8
	hold  bool
}

type measurePlan struct {
	meter *model.TimeSignature
	steps []step
}

// Export renders the song as a single track Standard MIDI File: every slot
// takes an equal share of its measure, blank beats hold the previous chord,
// and repeat signs replay the measures they stand for.
func Export(song *model.Song, opts Options) (*smf.SMF, error) {
	plans, err := plan(song, opts.Octave)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrNothingToPlay
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	var tr smf.Track
	var last, now uint64
	add := func(at uint64, msg []byte) {
		tr.Add(uint32(at-last), msg)
		last = at
	}
	var sounding []uint8
	release := func(at uint64) {
		for _, n := range sounding {
			add(at, gomidi.NoteOff(opts.Channel, n))
		}
		sounding = nil
	}

	add(0, smf.MetaTrackSequenceName(song.Title))
	add(0, smf.MetaTempo(opts.BPM))
	meter := model.TimeSignature{Beats: 4, Unit: 4}
	if plans[0].meter == nil {
		add(0, smf.MetaMeter(4, 4))
	}

	for _, p := range plans {
		if p.meter != nil {
			meter = *p.meter
			add(now, smf.MetaMeter(uint8(meter.Beats), uint8(meter.Unit)))
		}
		length := uint64(meter.Beats) * uint64(opts.TicksPerQuarter) * 4 / uint64(meter.Unit)
		if len(p.steps) == 0 {
			continue
		}
		stepLen := length / uint64(len(p.steps))
		for i, st := range p.steps {
			if st.hold {
				continue
			}
			at := now + uint64(i)*stepLen
			release(at)
			for _, n := range st.notes {
				add(at, gomidi.NoteOn(opts.Channel, n, opts.Velocity))
			}
			sounding = st.notes
		}
		now += length
	}
	release(now)
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("could not add track: %w", err)
	}
	return s, nil
}

func Write(w io.Writer, song *model.Song, opts Options) error {
	s, err := Export(song, opts)
	if err != nil {
		return err
	}
	_, err = s.WriteTo(w)
	return err
}

// plan resolves every measure into steps. Measures without slots take no
// time. A repeat sign leading a measure replays the resolved steps of the
// measure it points back to; the measure after a two measure repeat with no
// chords of its own replays the second measure of the pair.
func plan(song *model.Song, octave int) ([]measurePlan, error) {
	var ms []*model.Measure
	song.Each(func(_ model.MeasureRef, m *model.Measure) {
		ms = append(ms, m)
	})

	var res []measurePlan
	spanned := false
	for k, m := range ms {
		p := measurePlan{meter: m.Time}
		switch {
		case startsWith(m, model.SymbolRepeatOne) && k >= 1:
			p.steps = res[k-1].steps
			spanned = false
		case startsWith(m, model.SymbolRepeatTwo) && k >= 2:
			p.steps = res[k-2].steps
			spanned = true
		case spanned && silent(m) && k >= 2:
			p.steps = res[k-2].steps
			spanned = false
		default:
			spanned = false
			for _, slot := range m.Slots {
				st, err := slotStep(slot, octave)
				if err != nil {
					return nil, err
				}
				p.steps = append(p.steps, st)
			}
		}
		res = append(res, p)
	}

	// trailing measures with nothing in them are not played
	for len(res) > 0 && len(res[len(res)-1].steps) == 0 {
		res = res[:len(res)-1]
	}
	return res, nil
}

func slotStep(slot model.Slot, octave int) (step, error) {
	switch {
	case slot.Chord != nil && slot.Chord.IsPlaceholder():
		return step{hold: true}, nil
	case slot.Chord != nil:
		notes, err := chord.Notes(*slot.Chord, octave)
		if err != nil {
			return step{}, fmt.Errorf("measure %v slot %d: %w", slot.Chord.Measure, slot.Index, err)
		}
		return step{notes: notes}, nil
	case slot.Symbol != nil && slot.Symbol.Kind == model.SymbolNoChord:
		return step{}, nil
	}
	return step{hold: true}, nil
}

// startsWith reports whether the first entry of m other than a blank beat is
// a symbol of the given kind.
func startsWith(m *model.Measure, kind model.SymbolKind) bool {
	for _, slot := range m.Slots {
		if slot.Chord != nil && slot.Chord.IsPlaceholder() {
			continue
		}
		return slot.Symbol != nil && slot.Symbol.Kind == kind
	}
	return false
}

func silent(m *model.Measure) bool {
	for _, slot := range m.Slots {
		if slot.Symbol != nil || (slot.Chord != nil && !slot.Chord.IsPlaceholder()) {
			return false
		}
	}
	return true
}

func ReadMidiFile(filepath string) (s *smf.SMF, e error) {
	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			s, e = nil, errors.New(r)
		}
	}()

	dat, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, fmt.Errorf("error parsing midi file: %w", err)
	}
	return res, nil
}
