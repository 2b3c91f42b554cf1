// Package library keeps decoded songs in a SQLite database so they can be
// looked up by title and searched by chord.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jsphweid/leadsheet/chord"
	"github.com/jsphweid/leadsheet/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	_ "modernc.org/sqlite"
)

var ErrLocked = errors.New("library is locked by another process")

// Locked tags errors from Lock when another import holds the library.
const Locked ftag.Kind = "LOCKED"

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the library database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fault.Wrap(err, fmsg.With("create library directory"))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open sqlite db"))
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fault.Wrap(execErr, fmsg.With(fmt.Sprintf("apply pragma %q", pragma)))
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fault.Wrap(err, ftag.With(ftag.Internal))
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Lock takes the import lock next to the library file. Only one process may
// write to a library at a time.
func Lock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fault.Wrap(err, fmsg.With("create library directory"))
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("acquire library lock"))
	}
	if !ok {
		return nil, fault.Wrap(ErrLocked, ftag.With(Locked), fmsg.With(lock.Path()))
	}
	return lock, nil
}

// ID derives the entry id from the record, so importing the same record
// twice updates one entry.
func ID(record string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(record)).String()
}

// titleKey folds case and normalizes the title so lookups ignore how it was
// typed.
func titleKey(title string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(title)))
}

type indexedChord struct {
	key    string
	symbol string
}

// soundingChords lists the chords of song in reading order, skipping blank
// beats and alternates.
func soundingChords(song *model.Song) []indexedChord {
	var res []indexedChord
	song.Each(func(_ model.MeasureRef, m *model.Measure) {
		for _, slot := range m.Slots {
			if slot.Chord == nil || slot.Chord.IsPlaceholder() {
				continue
			}
			key, err := chord.Key(*slot.Chord)
			if err != nil {
				continue
			}
			res = append(res, indexedChord{key: key, symbol: slot.Chord.String()})
		}
	})
	return res
}

// Put stores song under the id of the record it was decoded from, replacing
// an earlier import of the same record.
func (s *Store) Put(ctx context.Context, song *model.Song, record string) (model.LibraryEntry, error) {
	entry := model.LibraryEntry{
		ID:        ID(record),
		Title:     song.Title,
		Author:    song.Author,
		Tempo:     song.Tempo,
		Key:       song.Key,
		Measures:  song.NumMeasures(),
		Record:    record,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entry, fault.Wrap(err, fmsg.With("begin put tx"))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", entry.ID); err != nil {
		return entry, fault.Wrap(err, fmsg.With("replace song"))
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO songs (
            id, title, title_key, author, tempo, key_code, measures, record, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Title,
		titleKey(entry.Title),
		entry.Author,
		entry.Tempo,
		entry.Key,
		entry.Measures,
		entry.Record,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return entry, fault.Wrap(err, fmsg.With("insert song"))
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chords (song_id, position, chord_key, symbol) VALUES (?, ?, ?, ?)")
	if err != nil {
		return entry, fault.Wrap(err, fmsg.With("prepare chord insert"))
	}
	defer stmt.Close()
	for i, c := range soundingChords(song) {
		if _, err := stmt.ExecContext(ctx, entry.ID, i, c.key, c.symbol); err != nil {
			return entry, fault.Wrap(err, fmsg.With("insert chord"))
		}
	}

	if err := tx.Commit(); err != nil {
		return entry, fault.Wrap(err, fmsg.With("commit put"))
	}
	return entry, nil
}

const entryColumns = "id, title, author, tempo, key_code, measures, record, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extra ...any) (model.LibraryEntry, error) {
	var e model.LibraryEntry
	var created string
	dest := append([]any{&e.ID, &e.Title, &e.Author, &e.Tempo, &e.Key, &e.Measures, &e.Record, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return e, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return e, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	e.CreatedAt = t
	return e, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.LibraryEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM songs WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fault.Wrap(err, ftag.With(ftag.NotFound), fmsg.WithDesc("song "+id+" not found", "No song with that id."))
	}
	if err != nil {
		return e, fault.Wrap(err, fmsg.With("get song"))
	}
	return e, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.LibraryEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("query songs"))
	}
	defer rows.Close()

	res := make([]model.LibraryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("scan song"))
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *Store) List(ctx context.Context) ([]model.LibraryEntry, error) {
	return s.query(ctx, "SELECT "+entryColumns+" FROM songs ORDER BY title_key, id")
}

// FindByTitle returns the songs whose title matches ignoring case.
func (s *Store) FindByTitle(ctx context.Context, title string) ([]model.LibraryEntry, error) {
	return s.query(ctx, "SELECT "+entryColumns+" FROM songs WHERE title_key = ? ORDER BY id", titleKey(title))
}

// SearchChord finds every song sounding the chord written as symbol, e.g.
// "Bb-7". Spellings with the same pitch classes match each other. The search
// key is returned along with the matches.
func (s *Store) SearchChord(ctx context.Context, symbol string) (string, []model.ChordMatch, error) {
	c, err := chord.Parse(symbol)
	if err != nil {
		return "", nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("parse chord", "Could not read chord "+symbol+"."))
	}
	key, err := chord.Key(c)
	if err != nil {
		return "", nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}
	matches, err := s.SearchKey(ctx, key)
	return key, matches, err
}

// SearchKey finds every song sounding a chord with the given search key.
func (s *Store) SearchKey(ctx context.Context, key string) ([]model.ChordMatch, error) {
	if key == "" {
		return nil, fault.New("empty chord key", ftag.With(ftag.InvalidArgument), fmsg.WithDesc("empty chord key", "No notes to search for."))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.author, s.tempo, s.key_code, s.measures, s.record, s.created_at, c.position
        FROM chords c JOIN songs s ON s.id = c.song_id
        WHERE c.chord_key = ?
        ORDER BY s.title_key, s.id, c.position`,
		key,
	)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("search chords"))
	}
	defer rows.Close()

	res := make([]model.ChordMatch, 0)
	for rows.Next() {
		var pos int
		e, err := scanEntry(rows, &pos)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("scan chord match"))
		}
		if n := len(res); n > 0 && res[n-1].Entry.ID == e.ID {
			res[n-1].Positions = append(res[n-1].Positions, pos)
			continue
		}
		res = append(res, model.ChordMatch{Entry: e, Positions: []int{pos}})
	}
	return res, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (model.LibraryStats, error) {
	var st model.LibraryStats
	err := s.db.QueryRowContext(ctx,
		`SELECT
            (SELECT COUNT(1) FROM songs),
            (SELECT COUNT(1) FROM chords),
            (SELECT COUNT(DISTINCT chord_key) FROM chords)`,
	).Scan(&st.Songs, &st.Chords, &st.DistinctChords)
	if err != nil {
		return st, fault.Wrap(err, fmsg.With("library stats"))
	}
	return st, nil
}
