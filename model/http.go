package model

type ParseResponse struct {
	Song        *Song        `json:"song,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// SongResponse is a library entry with its record decoded again.
type SongResponse struct {
	Entry       LibraryEntry `json:"entry"`
	Song        *Song        `json:"song"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic is the wire form of a scan problem.
type Diagnostic struct {
	Pos      int    `json:"pos"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SearchRequestBody names the chord to look for, either as a symbol such as
// "Bb-7" or as MIDI notes held together.
type SearchRequestBody struct {
	Chords []string  `json:"chords,omitempty"`
	Notes  [][]uint8 `json:"notes,omitempty"`
}

type SearchResponse struct {
	Key     string       `json:"key"`
	Results []ChordMatch `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
