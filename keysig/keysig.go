// Package keysig holds the static key signature table and decodes the
// header key code of a song.
package keysig

import (
	"errors"
	"fmt"

	"github.com/jsphweid/leadsheet/model"
)

var ErrUnknownKeySignature = errors.New("unknown key signature")

// Staff positions of the accidentals, in the order they are written.
var (
	sharps = []string{"F5#", "C5#", "G5#", "D5#", "A4#", "E5#", "B4#"}
	flats  = []string{"B4b", "E5b", "A4b", "D5b", "G4b", "C5b", "F4b"}
)

type entry struct {
	sharps bool
	count  int
}

// Table maps a tonic ("C", "F#", "Bb", ...) and mode to its accidentals.
type Table struct {
	major map[string]entry
	minor map[string]entry
}

// Default is the table of the 15 major and 15 minor keys.
var Default = Table{
	major: map[string]entry{
		"C":  {count: 0},
		"G":  {sharps: true, count: 1},
		"D":  {sharps: true, count: 2},
		"A":  {sharps: true, count: 3},
		"E":  {sharps: true, count: 4},
		"B":  {sharps: true, count: 5},
		"F#": {sharps: true, count: 6},
		"C#": {sharps: true, count: 7},
		"F":  {count: 1},
		"Bb": {count: 2},
		"Eb": {count: 3},
		"Ab": {count: 4},
		"Db": {count: 5},
		"Gb": {count: 6},
		"Cb": {count: 7},
	},
	minor: map[string]entry{
		"A":  {count: 0},
		"E":  {sharps: true, count: 1},
		"B":  {sharps: true, count: 2},
		"F#": {sharps: true, count: 3},
		"C#": {sharps: true, count: 4},
		"G#": {sharps: true, count: 5},
		"D#": {sharps: true, count: 6},
		"A#": {sharps: true, count: 7},
		"D":  {count: 1},
		"G":  {count: 2},
		"C":  {count: 3},
		"F":  {count: 4},
		"Bb": {count: 5},
		"Eb": {count: 6},
		"Ab": {count: 7},
	},
}

// Lookup returns the ordered staff notes carrying an accidental for ks.
func (t Table) Lookup(ks model.KeySignature) ([]string, bool) {
	m := t.major
	if ks.Mode == model.Minor {
		m = t.minor
	}
	e, ok := m[ks.Tonic()]
	if !ok {
		return nil, false
	}
	src := flats
	if e.sharps {
		src = sharps
	}
	res := make([]string, e.count)
	copy(res, src[:e.count])
	return res, true
}

// Has reports whether ks is a key of the table.
func (t Table) Has(ks model.KeySignature) bool {
	_, ok := t.Lookup(ks)
	return ok
}

// Accidentals looks ks up in the default table.
func Accidentals(ks model.KeySignature) ([]string, bool) {
	return Default.Lookup(ks)
}

// Decode parses a header key code against the default table.
func Decode(code string) (model.KeySignature, error) {
	return Default.Decode(code)
}

// Decode parses a 1-3 character key code: a letter, then an optional
// accidental (# or b), then an optional minor flag (m, or the iReal "-").
// With two characters the second is either the accidental or the flag.
func (t Table) Decode(code string) (model.KeySignature, error) {
	var ks model.KeySignature
	if len(code) == 0 || len(code) > 3 {
		return ks, fmt.Errorf("%w: %q", ErrUnknownKeySignature, code)
	}
	if code[0] < 'A' || code[0] > 'G' {
		return ks, fmt.Errorf("%w: %q: letter must be A-G", ErrUnknownKeySignature, code)
	}
	ks.Letter = code[:1]

	switch len(code) {
	case 2:
		switch {
		case isAccidental(code[1]):
			ks.Accidental = code[1:2]
		case isMinorFlag(code[1]):
			ks.Mode = model.Minor
		default:
			return ks, fmt.Errorf("%w: %q", ErrUnknownKeySignature, code)
		}
	case 3:
		if !isAccidental(code[1]) || !isMinorFlag(code[2]) {
			return ks, fmt.Errorf("%w: %q", ErrUnknownKeySignature, code)
		}
		ks.Accidental = code[1:2]
		ks.Mode = model.Minor
	}

	if !t.Has(ks) {
		return ks, fmt.Errorf("%w: %q is not a usable key", ErrUnknownKeySignature, code)
	}
	return ks, nil
}

func isAccidental(c byte) bool {
	return c == '#' || c == 'b'
}

func isMinorFlag(c byte) bool {
	return c == 'm' || c == '-'
}
