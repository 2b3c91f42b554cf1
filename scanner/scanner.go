// Package scanner decodes the chord chart body of a lead sheet record into a
// model.Song.
//
// The body is a dense, delimiter-free string: every character is dispatched
// on in a single pass, with a little lookahead and lookbehind to resolve
// characters whose meaning depends on their neighbours (a letter after "/" is
// a bass note, a barline after a barline only adjusts the measure boundary,
// and so on). The scanner holds no mutable state between calls, so one
// Scanner can be shared by concurrent parses.
package scanner

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jsphweid/leadsheet/keysig"
	"github.com/jsphweid/leadsheet/model"
)

// Options configures a Scanner. It is copied at construction.
type Options struct {
	// Strict aborts on the first error. Otherwise errors are collected as
	// diagnostics and the best-effort song is returned.
	Strict bool
	// Keys validates the header key. Zero value means keysig.Default.
	Keys   *keysig.Table
	Logger *slog.Logger
}

// Scanner decodes chart bodies. It is safe for concurrent use.
type Scanner struct {
	strict bool
	keys   *keysig.Table
	logger *slog.Logger
}

// New returns a Scanner using keysig.Default and a discarding logger unless
// opts says otherwise.
func New(opts Options) *Scanner {
	s := &Scanner{strict: opts.Strict, keys: opts.Keys, logger: opts.Logger}
	if s.keys == nil {
		s.keys = &keysig.Default
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Header carries the envelope fields copied onto the song.
type Header struct {
	Title  string
	Author string
	Tempo  string
	Key    string
}

// Scan decodes body. In strict mode the first error is returned as a
// *ScanError and no song is produced. In lenient mode the error is nil and
// problems are reported in the diagnostics. Warnings are reported in both
// modes.
func (s *Scanner) Scan(h Header, body string) (*model.Song, []Diagnostic, error) {
	st := &state{
		keys: s.keys,
		body: body,
		song: model.NewSong(h.Title, h.Author, h.Tempo, h.Key),
	}
	st.staff = st.song.AddStaff()

	for st.pos < len(st.body) && !st.done {
		pos, c := st.pos, st.body[st.pos]
		n := st.step(c)
		if err := s.flush(st, pos, c); err != nil {
			return nil, st.diags, err
		}
		st.pos += n
	}
	if !st.done && !st.truncated {
		st.fail(ErrUnterminatedSong)
		if err := s.flush(st, len(st.body), 0); err != nil {
			return nil, st.diags, err
		}
	}

	s.logger.Debug("scanned song body",
		slog.String("title", h.Title),
		slog.Int("staffs", len(st.song.Staffs)),
		slog.Int("measures", st.song.NumMeasures()),
		slog.Int("diagnostics", len(st.diags)),
	)
	return st.song, st.diags, nil
}

// flush turns the problems raised by the last step into diagnostics, or into
// the returned error in strict mode.
func (s *Scanner) flush(st *state, pos int, c byte) error {
	for _, err := range st.warnings {
		d := Diagnostic{Severity: SeverityWarning, Err: &ScanError{Pos: pos, Char: c, Err: err}}
		s.logger.Debug("scan warning", slog.String("diagnostic", d.String()))
		st.diags = append(st.diags, d)
	}
	st.warnings = st.warnings[:0]

	defer func() { st.errs = st.errs[:0] }()
	for _, err := range st.errs {
		se := &ScanError{Pos: pos, Char: c, Err: err}
		if s.strict {
			return se
		}
		s.logger.Debug("scan error", slog.String("diagnostic", se.Error()))
		st.diags = append(st.diags, Diagnostic{Severity: SeverityError, Err: se})
	}
	return nil
}

type noteTarget int

const (
	targetNone noteTarget = iota
	targetRoot
	targetBass
)

type state struct {
	keys *keysig.Table
	body string
	pos  int
	song *model.Song

	staff   int
	measure *model.MeasureRef
	prev    *model.MeasureRef
	chord   *model.ChordRef
	alt     *model.ChordRef

	pendingSmall   bool
	pendingFermata bool

	// accidental is set right after a root or bass letter so that a
	// following # or b lands on that note instead of the quality.
	accidental noteTarget
	// token is set while the previous character belonged to a chord or
	// symbol token. A space then only closes the token.
	token bool

	done      bool
	truncated bool
	errs      []error
	warnings  []error
	diags     []Diagnostic
}

func (st *state) fail(err error) {
	st.errs = append(st.errs, err)
}

func (st *state) warn(err error) {
	st.warnings = append(st.warnings, err)
}

// peek returns the character i positions ahead of the cursor, or 0 past the
// end of the body.
func (st *state) peek(i int) byte {
	if st.pos+i < 0 || st.pos+i >= len(st.body) {
		return 0
	}
	return st.body[st.pos+i]
}

// rest consumes the remainder of the body after a token that could not be
// closed.
func (st *state) rest() int {
	st.truncated = true
	return len(st.body) - st.pos
}

func isBarline(c byte) bool {
	return c == '|' || c == '{' || c == '[' || c == '}' || c == ']'
}

func isNote(c byte) bool {
	return c >= 'A' && c <= 'G'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// step handles the character at the cursor and returns how many characters
// it consumed.
func (st *state) step(c byte) int {
	accidental, token := st.accidental, st.token
	st.accidental, st.token = targetNone, false

	switch {
	case isBarline(c):
		return st.barline(c)
	case c == '*':
		return st.star()
	case c == 'T':
		return st.timeSignature()
	case isNote(c):
		return st.note(c)
	case c == ' ':
		if !token {
			st.placeholder()
		}
		return 1
	case c == ',':
		st.chord, st.alt = nil, nil
		return 1
	case c == 'N':
		return st.ending()
	case c == 's' && !st.inSus():
		st.pendingSmall = true
		return 1
	case c == 'l' && isNote(st.peek(1)):
		st.pendingSmall = false
		return 1
	case c == 'Z' || c == '=':
		st.ensureMeasure().StopBarline = model.BarlineFinal
		st.done = true
		return 1
	case c == 'Y' || c == 'p':
		st.warn(fmt.Errorf("%w: %q", ErrUnsupportedSymbol, c))
		return 1
	case c == '%':
		st.symbol(model.SymbolRepeatOne)
		return 1
	case c == 'x':
		st.symbol(model.SymbolRepeatTwo)
		return 1
	case c == 'n':
		st.symbol(model.SymbolNoChord)
		return 1
	case c == 'r':
		return st.repeatShorthand()
	case c == '(':
		return st.alternate()
	case c == ')':
		st.alt = nil
		st.token = true
		return 1
	case c == '<':
		return st.text()
	case c == 'S' || c == 'Q':
		st.annotate(model.SymbolSegno, "")
		return 1
	case c == 'f':
		st.pendingFermata = true
		return 1
	}
	return st.modifier(c, accidental)
}

func (st *state) inSus() bool {
	return strings.HasPrefix(st.body[st.pos:], "sus") ||
		(st.pos >= 2 && st.body[st.pos-2:st.pos+1] == "sus")
}

func (st *state) current() *model.Measure {
	if st.measure == nil {
		return nil
	}
	return st.song.Measure(*st.measure)
}

func (st *state) previous() *model.Measure {
	if st.prev == nil {
		return nil
	}
	return st.song.Measure(*st.prev)
}

// openMeasure appends m to the song, starting a new staff when the current
// one is full. The first measure of the song carries the header key.
func (st *state) openMeasure(m model.Measure) *model.Measure {
	if len(st.song.Staffs[st.staff].Measures) == model.MeasuresPerStaff {
		st.staff = st.song.AddStaff()
	}
	if st.staff == 0 && len(st.song.Staffs[0].Measures) == 0 {
		ks, err := st.keys.Decode(st.song.Key)
		if err != nil {
			st.fail(err)
		} else {
			m.Key = &ks
		}
	}

	ref := st.song.AddMeasure(st.staff, m)
	st.prev = st.measure
	st.measure = &ref
	st.chord, st.alt = nil, nil
	return st.song.Measure(ref)
}

// ensureMeasure returns the open measure, opening one when the body starts
// without a barline.
func (st *state) ensureMeasure() *model.Measure {
	if m := st.current(); m != nil {
		return m
	}
	return st.openMeasure(model.NewMeasure())
}

// slotMeasure returns the measure the next primary entry goes into. A full
// measure is followed by a new one.
func (st *state) slotMeasure() *model.Measure {
	m := st.ensureMeasure()
	if len(m.Slots) >= model.SlotsPerMeasure {
		m = st.openMeasure(model.NewMeasure())
	}
	return m
}

func (st *state) active() *model.ChordRef {
	if st.alt != nil {
		return st.alt
	}
	return st.chord
}

func (st *state) activeChord() *model.Chord {
	ref := st.active()
	if ref == nil {
		return nil
	}
	return st.song.Chord(*ref)
}

func (st *state) barline(c byte) int {
	cur := st.current()
	if cur != nil && isBarline(st.peek(-1)) {
		// the previous barline already opened this measure
		switch c {
		case '{':
			cur.StartBarline = model.BarlineRepeat
			cur.Empty = false
		case '[':
			cur.StartBarline = model.BarlineDouble
			cur.Empty = false
		case '}':
			if p := st.previous(); p != nil {
				p.StopBarline = model.BarlineRepeat
			}
		case ']':
			if p := st.previous(); p != nil {
				p.StopBarline = model.BarlineDouble
			}
		}
		return 1
	}

	if cur != nil {
		switch c {
		case '}':
			cur.StopBarline = model.BarlineRepeat
		case ']':
			cur.StopBarline = model.BarlineDouble
		}
	}

	m := model.NewMeasure()
	switch c {
	case '{':
		m.StartBarline = model.BarlineRepeat
		m.Empty = false
	case '[':
		m.StartBarline = model.BarlineDouble
		m.Empty = false
	}
	st.openMeasure(m)
	return 1
}

func (st *state) star() int {
	next := st.peek(1)
	if next == 0 {
		st.fail(fmt.Errorf("%w: dangling *", ErrUnterminatedSong))
		return st.rest()
	}
	if (next >= 'A' && next <= 'D') || next == 'i' {
		section := string(next)
		if next == 'i' {
			section = model.SectionIntro
		}
		st.ensureMeasure().Section = section
		return 2
	}

	j := strings.IndexByte(st.body[st.pos+1:], '*')
	if j < 0 {
		st.fail(fmt.Errorf("%w: unclosed *", ErrUnterminatedSong))
		return st.rest()
	}
	text := st.body[st.pos+1 : st.pos+1+j]
	ch := st.activeChord()
	if ch == nil {
		st.fail(fmt.Errorf("%w: text %q", ErrOrphanModifier, text))
		return j + 2
	}
	ch.Quality += text
	st.token = true
	return j + 2
}

func (st *state) timeSignature() int {
	if st.pos+2 >= len(st.body) {
		st.fail(fmt.Errorf("%w: truncated time signature", ErrUnterminatedSong))
		return st.rest()
	}
	beats, unit := st.body[st.pos+1], st.body[st.pos+2]
	if !isDigit(beats) || !isDigit(unit) || beats == '0' || unit == '0' {
		st.fail(fmt.Errorf("%w: %q", ErrInvalidTimeSignature, st.body[st.pos:st.pos+3]))
		return 3
	}
	st.ensureMeasure().Time = &model.TimeSignature{Beats: int(beats - '0'), Unit: int(unit - '0')}
	return 3
}

func (st *state) note(c byte) int {
	st.token = true
	if ref := st.active(); ref != nil && st.peek(-1) == '/' {
		st.song.Chord(*ref).Bass = string(c)
		st.accidental = targetBass
		return 1
	}

	m := st.slotMeasure()
	ref := model.ChordRef{MeasureRef: *st.measure, Slot: len(m.Slots), Alternate: -1}
	ch := &model.Chord{
		Measure: ref.MeasureRef,
		Slot:    ref.Slot,
		Root:    string(c),
		Small:   st.pendingSmall,
		Fermata: st.pendingFermata,
	}
	st.pendingSmall, st.pendingFermata = false, false

	m.Slots = append(m.Slots, model.Slot{Index: ref.Slot, Chord: ch})
	m.Empty = false
	st.chord, st.alt = &ref, nil
	st.accidental = targetRoot
	return 1
}

func (st *state) placeholder() {
	m := st.slotMeasure()
	ch := &model.Chord{Measure: *st.measure, Slot: len(m.Slots)}
	m.Slots = append(m.Slots, model.Slot{Index: ch.Slot, Chord: ch})
}

func (st *state) ending() int {
	next := st.peek(1)
	if next == 0 {
		st.fail(fmt.Errorf("%w: dangling ending", ErrUnterminatedSong))
		return st.rest()
	}
	st.ensureMeasure().Ending = string(next)
	return 2
}

func (st *state) symbol(kind model.SymbolKind) {
	m := st.slotMeasure()
	sym := &model.Symbol{Measure: *st.measure, Slot: len(m.Slots), Kind: kind}
	m.Slots = append(m.Slots, model.Slot{Index: sym.Slot, Symbol: sym})
	m.Empty = false
	st.token = true
}

// repeatShorthand handles "r": a two measure repeat sign followed by the
// measure it spans. The cursor moves just past the next "|".
func (st *state) repeatShorthand() int {
	st.symbol(model.SymbolRepeatTwo)
	m := st.openMeasure(model.NewMeasure())
	m.Empty = false
	st.token = false

	j := strings.IndexByte(st.body[st.pos+1:], '|')
	if j < 0 {
		st.fail(fmt.Errorf("%w: no barline after r", ErrUnterminatedSong))
		return st.rest()
	}
	return j + 2
}

func (st *state) alternate() int {
	next := st.peek(1)
	if next == 0 {
		st.fail(fmt.Errorf("%w: dangling (", ErrUnterminatedSong))
		return st.rest()
	}
	m := st.current()
	if m == nil || len(m.Slots) == 0 {
		st.fail(fmt.Errorf("%w: alternate chord before any slot", ErrOrphanModifier))
		return 2
	}

	slot := &m.Slots[len(m.Slots)-1]
	alt := model.Chord{Measure: *st.measure, Slot: slot.Index, Alternate: true}
	if isNote(next) {
		alt.Root = string(next)
		st.accidental = targetRoot
	} else {
		alt.Quality = string(next)
	}
	slot.Alternates = append(slot.Alternates, alt)
	m.Empty = false

	st.alt = &model.ChordRef{MeasureRef: *st.measure, Slot: slot.Index, Alternate: len(slot.Alternates) - 1}
	st.token = true
	return 2
}

func (st *state) text() int {
	j := strings.IndexByte(st.body[st.pos+1:], '>')
	if j < 0 {
		st.fail(fmt.Errorf("%w: unclosed <", ErrUnterminatedSong))
		return st.rest()
	}
	st.annotate(model.SymbolText, st.body[st.pos+1:st.pos+1+j])
	return j + 2
}

// annotate attaches a symbol at the current slot index without taking the
// slot. A full measure puts it on its last slot.
func (st *state) annotate(kind model.SymbolKind, text string) {
	m := st.ensureMeasure()
	slot := min(len(m.Slots), model.SlotsPerMeasure-1)
	m.Annotations = append(m.Annotations, model.Symbol{Measure: *st.measure, Slot: slot, Kind: kind, Text: text})
}

// modifier extends the open chord with c: an accidental right after a root
// or bass letter, the "/" before a bass letter, or quality text.
func (st *state) modifier(c byte, accidental noteTarget) int {
	ch := st.activeChord()
	if ch == nil {
		st.fail(fmt.Errorf("%w: %q", ErrOrphanModifier, c))
		return 1
	}
	st.token = true

	if c == '#' || c == 'b' {
		switch accidental {
		case targetRoot:
			ch.Root += string(c)
			return 1
		case targetBass:
			ch.Bass += string(c)
			return 1
		}
	}
	if c == '/' && isNote(st.peek(1)) {
		return 1
	}
	ch.Quality += string(c)
	return 1
}
