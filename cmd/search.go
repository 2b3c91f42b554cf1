package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jsphweid/leadsheet/chord"
	"github.com/jsphweid/leadsheet/model"
	"github.com/spf13/cobra"
)

var (
	searchNotes []uint
	searchTitle bool
)

func init() {
	searchCmd.Flags().UintSliceVar(&searchNotes, "notes", nil, "search by MIDI notes held together, e.g. 60,64,67")
	searchCmd.Flags().BoolVar(&searchTitle, "title", false, "look songs up by title instead of chord")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [chord|title]",
	Short: "Finds library songs containing a chord",
	Long: `Finds the library songs that sound a chord, written as a symbol such as
"Bb-7" or given with --notes. Spellings with the same notes match each other.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openLibrary(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		out := cmd.OutOrStdout()

		switch {
		case searchTitle && len(args) == 1:
			entries, err := store.FindByTitle(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderEntries(entries))
			return nil
		case len(searchNotes) > 0:
			notes := make([]uint8, 0, len(searchNotes))
			for _, n := range searchNotes {
				if n > 127 {
					return fmt.Errorf("note %d is out of range", n)
				}
				notes = append(notes, uint8(n))
			}
			key := chord.KeyOfNotes(notes)
			matches, err := store.SearchKey(ctx, key)
			if err != nil {
				return err
			}
			printMatches(cmd, key, matches)
			return nil
		case len(args) == 1:
			key, matches, err := store.SearchChord(ctx, args[0])
			if err != nil {
				return err
			}
			printMatches(cmd, key, matches)
			return nil
		}
		return fmt.Errorf("give a chord symbol, --notes or --title with a title")
	},
}

func printMatches(cmd *cobra.Command, key string, matches []model.ChordMatch) {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		positions := make([]string, 0, len(m.Positions))
		for _, p := range m.Positions {
			positions = append(positions, strconv.Itoa(p))
		}
		rows = append(rows, []string{m.Entry.Title, m.Entry.Author, m.Entry.Key, strings.Join(positions, ", "), m.Entry.ID})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]column{
		{title: "Title"}, {title: "Author"}, {title: "Key"}, {title: "Positions"}, {title: "ID"},
	}, rows))
	fmt.Fprintf(out, "chord key %s found in %s songs\n", key, humanize.Comma(int64(len(matches))))
}

func renderEntries(entries []model.LibraryEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Title,
			e.Author,
			e.Key,
			e.Tempo,
			humanize.Comma(int64(e.Measures)),
			humanize.Time(e.CreatedAt),
			e.ID,
		})
	}
	return renderTable([]column{
		{title: "Title"}, {title: "Author"}, {title: "Key"}, {title: "Tempo"},
		{title: "Measures", right: true}, {title: "Added"}, {title: "ID"},
	}, rows)
}
