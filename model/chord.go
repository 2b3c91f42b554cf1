package model

import "strconv"

type Chord struct {
	Measure MeasureRef `json:"measure"`
	Slot    int        `json:"slot"`
	// Root is the letter A-G followed by an optional accidental. It is empty
	// for a placeholder (a blank beat).
	Root      string `json:"root"`
	Quality   string `json:"quality,omitempty"`
	Bass      string `json:"bass,omitempty"`
	Small     bool   `json:"small,omitempty"`
	Fermata   bool   `json:"fermata,omitempty"`
	Alternate bool   `json:"alternate,omitempty"`
}

func (c Chord) IsPlaceholder() bool {
	return c.Root == "" && c.Quality == "" && c.Bass == ""
}

func (c Chord) String() string {
	res := c.Root + c.Quality
	if c.Bass != "" {
		res += "/" + c.Bass
	}
	return res
}

type SymbolKind int

const (
	SymbolRepeatOne SymbolKind = iota
	SymbolRepeatTwo
	SymbolNoChord
	SymbolSegno
	SymbolCoda
	SymbolText
)

var symbolKindNames = []string{"repeat-one", "repeat-two", "no-chord", "segno", "coda", "text"}

func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return "SymbolKind(" + strconv.Itoa(int(k)) + ")"
	}
	return symbolKindNames[k]
}

func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SymbolKind) UnmarshalText(text []byte) error {
	for i, name := range symbolKindNames {
		if name == string(text) {
			*k = SymbolKind(i)
			return nil
		}
	}
	return &UnknownNameError{Kind: "symbol kind", Name: string(text)}
}

// Takes reports whether the symbol occupies a primary slot. Navigation marks
// and text only annotate one.
func (k SymbolKind) Takes() bool {
	return k == SymbolRepeatOne || k == SymbolRepeatTwo || k == SymbolNoChord
}

type Symbol struct {
	Measure MeasureRef `json:"measure"`
	Slot    int        `json:"slot"`
	Kind    SymbolKind `json:"kind"`
	Text    string     `json:"text,omitempty"`
}

func (s Symbol) String() string {
	switch s.Kind {
	case SymbolRepeatOne:
		return "%"
	case SymbolRepeatTwo:
		return "x"
	case SymbolNoChord:
		return "N.C."
	case SymbolText:
		return s.Text
	}
	return s.Kind.String()
}

type UnknownNameError struct {
	Kind string
	Name string
}

func (e *UnknownNameError) Error() string {
	return "unknown " + e.Kind + " " + strconv.Quote(e.Name)
}
