package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/jsphweid/leadsheet/chord"
	"github.com/jsphweid/leadsheet/decode"
	"github.com/jsphweid/leadsheet/library"
	"github.com/jsphweid/leadsheet/midi"
	"github.com/jsphweid/leadsheet/model"
	"github.com/jsphweid/leadsheet/scanner"
	"github.com/jsphweid/leadsheet/util"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

const maxBodySize = 1 << 20

var serveBind string

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "address to listen on, overrides server.bind")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the decoder and the library over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openLibrary(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if path := cfg.Server.Watch; path != "" {
			reimport := func() {
				if err := reindex(ctx, store, path); err != nil {
					logger.Error("re-import failed", "path", path, "error", err)
				}
			}
			reimport()
			go func() {
				if err := watchFile(ctx, path, 500*time.Millisecond, reimport, logger); err != nil {
					logger.Error("watch failed", "path", path, "error", err)
				}
			}()
		}

		bind := cfg.Server.Bind
		if serveBind != "" {
			bind = serveBind
		}
		srv := &http.Server{
			Addr:              bind,
			Handler:           NewServer(store, newDecoder(), midiOptions(), logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("listening", "bind", bind, "library", store.Path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// reindex imports the songs file at path unless another process holds the
// library.
func reindex(ctx context.Context, store *library.Store, path string) error {
	lock, err := library.Lock(store.Path())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	_, err = Index(ctx, store, newDecoder(), path, cfg.Parser.Workers, logger)
	return err
}

// watchFile calls fn once path has stopped changing for quiet. The parent
// directory is watched so editors that replace the file are seen too. It
// returns when ctx is done.
func watchFile(ctx context.Context, path string, quiet time.Duration, fn func(), logger *slog.Logger) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fault.Wrap(err, fmsg.With("create file watcher"))
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fault.Wrap(err, fmsg.With("watch "+filepath.Dir(target)))
	}

	debounced := debounce.New(quiet)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == target && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounced(fn)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watch error", "path", target, "error", err)
		}
	}
}

// Server answers decode and library requests.
type Server struct {
	store  *library.Store
	dec    *decode.Decoder
	midi   midi.Options
	logger *slog.Logger
}

func NewServer(store *library.Store, dec *decode.Decoder, opts midi.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{store: store, dec: dec, midi: opts, logger: logger}
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/parse", s.HandleParse).Methods("POST")
	router.HandleFunc("/songs", s.HandleSongs).Methods("GET")
	router.HandleFunc("/songs/{id}", s.HandleSong).Methods("GET")
	router.HandleFunc("/songs/{id}/midi", s.HandleSongMidi).Methods("GET")
	router.HandleFunc("/search", s.HandleSearch).Methods("POST")
	return cors.Default().Handler(router)
}

// HandleParse decodes the record in the request body. ?strict=true stops at
// the first error.
func (s *Server) HandleParse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.With("read body")))
		return
	}
	dec := s.dec
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		dec = decode.NewDecoder(scanner.Options{Strict: true, Logger: s.logger})
	}
	song, diags, err := dec.Decode(string(body))
	if err != nil {
		s.writeError(w, fault.Wrap(err, ftag.With(ftag.InvalidArgument)))
		return
	}
	writeJSON(w, http.StatusOK, model.ParseResponse{Song: song, Diagnostics: decode.Wire(diags)})
}

// HandleSongs lists the library, or the songs matching ?title=. ?limit=
// caps the number returned.
func (s *Server) HandleSongs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var entries []model.LibraryEntry
	var err error
	if title := q.Get("title"); title != "" {
		entries, err = s.store.FindByTitle(r.Context(), title)
	} else {
		entries, err = s.store.List(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, fault.New("bad limit", ftag.With(ftag.InvalidArgument), fmsg.WithDesc("bad limit", "limit must be a positive number")))
			return
		}
		entries = entries[:util.Min(limit, len(entries))]
	}
	for i := range entries {
		entries[i].Record = ""
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) HandleSong(w http.ResponseWriter, r *http.Request) {
	entry, song, diags, err := s.load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SongResponse{Entry: entry, Song: song, Diagnostics: decode.Wire(diags)})
}

// HandleSongMidi renders a library song as MIDI. ?from= (ticks) and ?notes=
// cut a preview out of it.
func (s *Server) HandleSongMidi(w http.ResponseWriter, r *http.Request) {
	entry, song, _, err := s.load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	file, err := midi.Export(song, s.midi)
	if err != nil {
		s.writeError(w, fault.Wrap(err, ftag.With(ftag.InvalidArgument)))
		return
	}
	q := r.URL.Query()
	if q.Has("from") || q.Has("notes") {
		from, errFrom := strconv.ParseUint(q.Get("from"), 10, 64)
		notes, errNotes := strconv.Atoi(q.Get("notes"))
		if (q.Has("from") && errFrom != nil) || (q.Has("notes") && errNotes != nil) {
			s.writeError(w, fault.New("bad excerpt", ftag.With(ftag.InvalidArgument),
				fmsg.WithDesc("bad excerpt", "from and notes must be whole numbers")))
			return
		}
		file = midi.Excerpt(file, from, notes)
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.ID+".mid"))
	if _, err := file.WriteTo(w); err != nil {
		s.logger.Warn("midi response not written", "id", entry.ID, "error", err)
	}
}

func (s *Server) load(ctx context.Context, id string) (model.LibraryEntry, *model.Song, []scanner.Diagnostic, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return entry, nil, nil, err
	}
	song, diags, err := s.dec.Decode(entry.Record)
	if err != nil {
		return entry, nil, nil, fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("decode stored record"))
	}
	return entry, song, diags, nil
}

// HandleSearch looks up one chord, given either as a symbol or as MIDI notes.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var input model.SearchRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&input); err != nil {
		s.writeError(w, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("decode search body", "Could not read the search request.")))
		return
	}
	if len(input.Chords)+len(input.Notes) != 1 {
		s.writeError(w, fault.New("one chord per search", ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("one chord per search", "Give exactly one chord or one set of notes.")))
		return
	}

	var res model.SearchResponse
	var err error
	if len(input.Chords) == 1 {
		res.Key, res.Results, err = s.store.SearchChord(r.Context(), input.Chords[0])
	} else {
		res.Key = chord.KeyOfNotes(input.Notes[0])
		res.Results, err = s.store.SearchKey(r.Context(), res.Key)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	for i := range res.Results {
		res.Results[i].Entry.Record = ""
	}
	writeJSON(w, http.StatusOK, res)
}

func statusOf(err error) int {
	switch ftag.Get(err) {
	case ftag.NotFound:
		return http.StatusNotFound
	case ftag.InvalidArgument:
		return http.StatusBadRequest
	case library.Locked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
