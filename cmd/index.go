package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jsphweid/leadsheet/batch"
	"github.com/jsphweid/leadsheet/decode"
	"github.com/jsphweid/leadsheet/file"
	"github.com/jsphweid/leadsheet/library"
	"github.com/jsphweid/leadsheet/scanner"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index <songs-file>",
	Short: "Imports a songs file into the library",
	Long: `Decodes every record of a songs file, one record per line, and stores the
songs in the library. Records that fail to decode are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lock, err := library.Lock(cfg.Library.Path)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()

		store, err := openLibrary(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		start := time.Now()
		summary, err := Index(ctx, store, newDecoder(), args[0], cfg.Parser.Workers, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(summary.Failures) > 0 {
			rows := make([][]string, 0, len(summary.Failures))
			for _, f := range summary.Failures {
				rows = append(rows, []string{strconv.Itoa(f.Line), f.Reason})
			}
			fmt.Fprintln(out, renderTable([]column{{title: "Line", right: true}, {title: "Problem"}}, rows))
		}
		fmt.Fprintf(out, "Imported %s of %s records (%s failed) in %s\n",
			humanize.Comma(int64(summary.Imported)),
			humanize.Comma(int64(summary.Records)),
			humanize.Comma(int64(len(summary.Failures))),
			time.Since(start).Round(time.Millisecond))
		return nil
	},
}

type IndexFailure struct {
	Line   int
	Reason string
}

type IndexSummary struct {
	Records  int
	Imported int
	Failures []IndexFailure
}

// Index decodes the records of the songs file at path and puts every song
// that decoded without errors into store. The caller holds the library lock.
func Index(ctx context.Context, store *library.Store, dec *decode.Decoder, path string, workers int, logger *slog.Logger) (IndexSummary, error) {
	var summary IndexSummary
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	records, err := file.ReadRecordsFile(path)
	if err != nil {
		return summary, err
	}
	summary.Records = len(records)

	for _, res := range batch.ParseAll(ctx, dec, records, workers, logger) {
		if res.Failed() {
			summary.Failures = append(summary.Failures, IndexFailure{Line: res.Record.Line, Reason: failureReason(res)})
			continue
		}
		if _, err := store.Put(ctx, res.Song, res.Text); err != nil {
			return summary, err
		}
		summary.Imported++
	}
	logger.Info("songs file indexed",
		slog.String("path", path),
		slog.Int("records", summary.Records),
		slog.Int("imported", summary.Imported),
		slog.Int("failed", len(summary.Failures)))
	return summary, nil
}

func failureReason(res batch.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	for _, d := range res.Diagnostics {
		if d.Severity == scanner.SeverityError {
			return d.Err.Error()
		}
	}
	return "unknown error"
}
