package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jsphweid/leadsheet/library"
	"github.com/jsphweid/leadsheet/model"
	"github.com/jsphweid/leadsheet/util"
	"github.com/spf13/cobra"
)

var reportSongs bool

func init() {
	reportCmd.Flags().BoolVar(&reportSongs, "songs", false, "also list every song")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarizes the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openLibrary(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := analyzeLibrary(ctx, store)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)
		if reportSongs {
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(r.entries))
		}
		return nil
	},
}

type libraryReport struct {
	stats    model.LibraryStats
	measures uint64
	bytes    int64
	songsIn  map[string]int
	entries  []model.LibraryEntry
}

func analyzeLibrary(ctx context.Context, store *library.Store) (libraryReport, error) {
	var r libraryReport
	stats, err := store.Stats(ctx)
	if err != nil {
		return r, err
	}
	r.stats = stats

	r.entries, err = store.List(ctx)
	if err != nil {
		return r, err
	}
	measures := make([]int, 0, len(r.entries))
	r.songsIn = make(map[string]int)
	for _, e := range r.entries {
		measures = append(measures, e.Measures)
		r.songsIn[e.Key]++
	}
	r.measures = util.Sum(measures)

	// the WAL holds writes not yet checkpointed into the main file
	for _, suffix := range []string{"", "-wal"} {
		if info, err := os.Stat(store.Path() + suffix); err == nil {
			r.bytes += info.Size()
		}
	}
	return r, nil
}

func printReport(out io.Writer, r libraryReport) {
	fmt.Fprintf(out, "songs:           %s\n", humanize.Comma(r.stats.Songs))
	fmt.Fprintf(out, "measures:        %s\n", humanize.Comma(int64(r.measures)))
	fmt.Fprintf(out, "chords:          %s\n", humanize.Comma(r.stats.Chords))
	fmt.Fprintf(out, "distinct chords: %s\n", humanize.Comma(r.stats.DistinctChords))
	fmt.Fprintf(out, "library size:    %s\n", humanize.Bytes(uint64(r.bytes)))

	keys := util.GetKeys(r.songsIn)
	if len(keys) == 0 {
		return
	}
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(r.songsIn[k])})
	}
	fmt.Fprintln(out, renderTable([]column{{title: "Key"}, {title: "Songs", right: true}}, rows))
}
