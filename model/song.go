package model

import (
	"errors"
	"fmt"
)

// MeasuresPerStaff is the visual line-wrap policy: a staff holds at most this
// many measures before a new one is started.
const MeasuresPerStaff = 4

// SlotsPerMeasure is the number of primary chord/symbol positions in a measure.
const SlotsPerMeasure = 4

type Song struct {
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Tempo  string  `json:"tempo"`
	Key    string  `json:"key"`
	Staffs []Staff `json:"staffs"`
}

type Staff struct {
	Index    int       `json:"index"`
	Measures []Measure `json:"measures"`
}

// MeasureRef addresses a measure by position. Refs stay valid while staffs
// and measures are appended, unlike pointers into the slices.
type MeasureRef struct {
	Staff   int `json:"staff"`
	Measure int `json:"measure"`
}

// ChordRef addresses a chord inside a measure. Alternate is -1 for the
// primary chord of the slot.
type ChordRef struct {
	MeasureRef
	Slot      int `json:"slot"`
	Alternate int `json:"alternate"`
}

func (r ChordRef) IsAlternate() bool {
	return r.Alternate >= 0
}

func NewSong(title, author, tempo, key string) *Song {
	return &Song{Title: title, Author: author, Tempo: tempo, Key: key}
}

// AddStaff appends an empty staff and returns its index.
func (s *Song) AddStaff() int {
	s.Staffs = append(s.Staffs, Staff{Index: len(s.Staffs)})
	return len(s.Staffs) - 1
}

// AddMeasure appends m to the staff at index staff, fixing up the measure's
// index, and returns a reference to it.
func (s *Song) AddMeasure(staff int, m Measure) MeasureRef {
	st := &s.Staffs[staff]
	m.Index = len(st.Measures)
	st.Measures = append(st.Measures, m)
	return MeasureRef{Staff: staff, Measure: m.Index}
}

// Measure resolves ref, returning nil when it points outside the song.
func (s *Song) Measure(ref MeasureRef) *Measure {
	if ref.Staff < 0 || ref.Staff >= len(s.Staffs) {
		return nil
	}
	st := &s.Staffs[ref.Staff]
	if ref.Measure < 0 || ref.Measure >= len(st.Measures) {
		return nil
	}
	return &st.Measures[ref.Measure]
}

// Chord resolves ref, returning nil when the slot holds no chord.
func (s *Song) Chord(ref ChordRef) *Chord {
	m := s.Measure(ref.MeasureRef)
	if m == nil || ref.Slot < 0 || ref.Slot >= len(m.Slots) {
		return nil
	}
	slot := &m.Slots[ref.Slot]
	if ref.IsAlternate() {
		if ref.Alternate >= len(slot.Alternates) {
			return nil
		}
		return &slot.Alternates[ref.Alternate]
	}
	return slot.Chord
}

// Each visits every measure in reading order.
func (s *Song) Each(fn func(ref MeasureRef, m *Measure)) {
	for i := range s.Staffs {
		for j := range s.Staffs[i].Measures {
			fn(MeasureRef{Staff: i, Measure: j}, &s.Staffs[i].Measures[j])
		}
	}
}

func (s *Song) NumMeasures() int {
	n := 0
	for _, st := range s.Staffs {
		n += len(st.Measures)
	}
	return n
}

// Last returns the final measure of the song, or nil for an empty song.
func (s *Song) Last() *Measure {
	for i := len(s.Staffs) - 1; i >= 0; i-- {
		if n := len(s.Staffs[i].Measures); n > 0 {
			return &s.Staffs[i].Measures[n-1]
		}
	}
	return nil
}

var ErrInvariant = errors.New("document invariant violated")

// Validate checks the structural invariants of a decoded song: staff and
// slot wrapping, slot ordering, ownership refs and key signature placement.
func (s *Song) Validate() error {
	for i, st := range s.Staffs {
		if st.Index != i {
			return fmt.Errorf("%w: staff %d has index %d", ErrInvariant, i, st.Index)
		}
		if len(st.Measures) > MeasuresPerStaff {
			return fmt.Errorf("%w: staff %d holds %d measures", ErrInvariant, i, len(st.Measures))
		}
		if i < len(s.Staffs)-1 && len(st.Measures) != MeasuresPerStaff {
			return fmt.Errorf("%w: staff %d holds %d measures but is not the last", ErrInvariant, i, len(st.Measures))
		}
	}

	var err error
	s.Each(func(ref MeasureRef, m *Measure) {
		if err != nil {
			return
		}
		first := ref.Staff == 0 && ref.Measure == 0
		if m.Key != nil && !first {
			err = fmt.Errorf("%w: key signature on measure %v", ErrInvariant, ref)
			return
		}
		err = m.validate(ref)
	})
	return err
}

func (m *Measure) validate(ref MeasureRef) error {
	if m.Index != ref.Measure {
		return fmt.Errorf("%w: measure %v has index %d", ErrInvariant, ref, m.Index)
	}
	if len(m.Slots) > SlotsPerMeasure {
		return fmt.Errorf("%w: measure %v holds %d slots", ErrInvariant, ref, len(m.Slots))
	}
	if m.Time != nil && (m.Time.Beats <= 0 || m.Time.Unit <= 0) {
		return fmt.Errorf("%w: measure %v has time signature %v", ErrInvariant, ref, *m.Time)
	}
	for i, slot := range m.Slots {
		if slot.Index != i {
			return fmt.Errorf("%w: measure %v slot %d has index %d", ErrInvariant, ref, i, slot.Index)
		}
		if (slot.Chord == nil) == (slot.Symbol == nil) {
			return fmt.Errorf("%w: measure %v slot %d must hold exactly one chord or symbol", ErrInvariant, ref, i)
		}
		if slot.Chord != nil && (slot.Chord.Measure != ref || slot.Chord.Slot != i || slot.Chord.Alternate) {
			return fmt.Errorf("%w: measure %v slot %d chord has a bad owner", ErrInvariant, ref, i)
		}
		if slot.Symbol != nil && (slot.Symbol.Measure != ref || slot.Symbol.Slot != i) {
			return fmt.Errorf("%w: measure %v slot %d symbol has a bad owner", ErrInvariant, ref, i)
		}
		for _, alt := range slot.Alternates {
			if !alt.Alternate || alt.Slot != i || alt.Measure != ref {
				return fmt.Errorf("%w: measure %v slot %d has a bad alternate chord", ErrInvariant, ref, i)
			}
		}
	}
	for _, a := range m.Annotations {
		if a.Slot < 0 || a.Slot >= SlotsPerMeasure || a.Measure != ref {
			return fmt.Errorf("%w: measure %v has a bad annotation", ErrInvariant, ref)
		}
	}
	return nil
}
