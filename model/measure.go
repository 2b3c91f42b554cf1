package model

import (
	"fmt"
	"strconv"
)

type Barline int

const (
	BarlineNone Barline = iota
	BarlineSingle
	BarlineDouble
	BarlineRepeat
	BarlineFinal
)

var barlineNames = []string{"none", "single", "double", "repeat", "final"}

func (b Barline) String() string {
	if b < 0 || int(b) >= len(barlineNames) {
		return "Barline(" + strconv.Itoa(int(b)) + ")"
	}
	return barlineNames[b]
}

func (b Barline) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Barline) UnmarshalText(text []byte) error {
	for i, name := range barlineNames {
		if name == string(text) {
			*b = Barline(i)
			return nil
		}
	}
	return &UnknownNameError{Kind: "barline", Name: string(text)}
}

type Mode int

const (
	Major Mode = iota
	Minor
)

func (m Mode) String() string {
	if m == Minor {
		return "minor"
	}
	return "major"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "major":
		*m = Major
	case "minor":
		*m = Minor
	default:
		return &UnknownNameError{Kind: "mode", Name: string(text)}
	}
	return nil
}

type KeySignature struct {
	Letter     string `json:"letter"`
	Accidental string `json:"accidental,omitempty"`
	Mode       Mode   `json:"mode"`
}

// Tonic returns the letter with its accidental, e.g. "Bb".
func (k KeySignature) Tonic() string {
	return k.Letter + k.Accidental
}

func (k KeySignature) String() string {
	if k.Mode == Minor {
		return k.Tonic() + "m"
	}
	return k.Tonic()
}

type TimeSignature struct {
	Beats int `json:"beats"`
	Unit  int `json:"unit"`
}

func (t TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", t.Beats, t.Unit)
}

// SectionIntro is the section label of an intro passage. Other sections are
// single uppercase letters.
const SectionIntro = "intro"

type Measure struct {
	Index        int            `json:"index"`
	Time         *TimeSignature `json:"time,omitempty"`
	Key          *KeySignature  `json:"key,omitempty"`
	StartBarline Barline        `json:"start_barline"`
	StopBarline  Barline        `json:"stop_barline"`
	Ending       string         `json:"ending,omitempty"`
	Section      string         `json:"section,omitempty"`
	Empty        bool           `json:"empty"`
	Slots        []Slot         `json:"slots"`
	// Segno, coda and text markings. They point at a slot index but never
	// take one.
	Annotations []Symbol `json:"annotations,omitempty"`
}

// NewMeasure returns an empty measure bounded by single barlines.
func NewMeasure() Measure {
	return Measure{StartBarline: BarlineSingle, StopBarline: BarlineSingle, Empty: true}
}

type Slot struct {
	Index      int     `json:"index"`
	Chord      *Chord  `json:"chord,omitempty"`
	Symbol     *Symbol `json:"symbol,omitempty"`
	Alternates []Chord `json:"alternates,omitempty"`
}

// Entries returns the slot's contents in drawing order: the primary chord or
// symbol followed by any alternate chords.
func (s *Slot) Entries() []any {
	res := make([]any, 0, 1+len(s.Alternates))
	if s.Chord != nil {
		res = append(res, *s.Chord)
	}
	if s.Symbol != nil {
		res = append(res, *s.Symbol)
	}
	for _, alt := range s.Alternates {
		res = append(res, alt)
	}
	return res
}

func (s *Slot) String() string {
	var res string
	if s.Chord != nil {
		res = s.Chord.String()
	}
	if s.Symbol != nil {
		res = s.Symbol.String()
	}
	for _, alt := range s.Alternates {
		res += "(" + alt.String() + ")"
	}
	return res
}

// AnnotationsAt returns the annotations pointing at slot index i.
func (m *Measure) AnnotationsAt(i int) []Symbol {
	var res []Symbol
	for _, a := range m.Annotations {
		if a.Slot == i {
			res = append(res, a)
		}
	}
	return res
}

// NumChords counts primary slots, the divisor renderers use to lay out a
// measure. Alternates do not count.
func (m *Measure) NumChords() int {
	return len(m.Slots)
}
