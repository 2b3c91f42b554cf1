package model

import "time"

// LibraryEntry is a song stored in the library along with the record it was
// decoded from.
type LibraryEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Tempo     string    `json:"tempo"`
	Key       string    `json:"key"`
	Measures  int       `json:"measures"`
	Record    string    `json:"record,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChordMatch is one library song containing a searched chord. Positions are
// indexes into the song's sequence of sounding chords.
type ChordMatch struct {
	Entry     LibraryEntry `json:"entry"`
	Positions []int        `json:"positions"`
}

type LibraryStats struct {
	Songs          int64 `json:"songs"`
	Chords         int64 `json:"chords"`
	DistinctChords int64 `json:"distinct_chords"`
}
