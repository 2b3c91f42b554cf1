// Package batch decodes many records on a bounded pool of goroutines.
package batch

import (
	"context"
	"io"
	"log/slog"

	"github.com/jsphweid/leadsheet/decode"
	"github.com/jsphweid/leadsheet/file"
	"github.com/jsphweid/leadsheet/model"
	"github.com/jsphweid/leadsheet/scanner"
	"github.com/remeh/sizedwaitgroup"
)

type Result struct {
	Record file.Record
	// Text is the record after percent-decoding, the form to store.
	Text        string
	Song        *model.Song
	Diagnostics []scanner.Diagnostic
	Err         error
}

// Failed reports whether the record produced no song or error diagnostics.
func (r Result) Failed() bool {
	return r.Err != nil || scanner.HasErrors(r.Diagnostics)
}

// ParseAll decodes records with at most workers parses in flight. Results
// come back in record order. Records not started when ctx is cancelled carry
// the context error.
func ParseAll(ctx context.Context, dec *decode.Decoder, records []file.Record, workers int, logger *slog.Logger) []Result {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	res := make([]Result, len(records))
	wg := sizedwaitgroup.New(workers)
	for i, rec := range records {
		res[i].Record = rec
		if err := ctx.Err(); err != nil {
			res[i].Err = err
			continue
		}
		if err := wg.AddWithContext(ctx); err != nil {
			res[i].Err = err
			continue
		}
		go func(i int, rec file.Record) {
			defer wg.Done()
			text, err := decode.Normalize(rec.Text)
			if err == nil {
				res[i].Text = text
				res[i].Song, res[i].Diagnostics, err = dec.DecodeRecord(text)
			}
			res[i].Err = err
			if err != nil {
				logger.Debug("record failed", slog.Int("line", rec.Line), slog.String("error", err.Error()))
			}
		}(i, rec)
	}
	wg.Wait()
	return res
}
