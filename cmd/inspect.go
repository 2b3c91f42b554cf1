package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jsphweid/leadsheet/chord"
	"github.com/jsphweid/leadsheet/midi"
	"github.com/jsphweid/leadsheet/model"
	"github.com/spf13/cobra"
)

var inspectMidi string

func init() {
	inspectCmd.Flags().StringVar(&inspectMidi, "midi", "", "list the chords sounding in a MIDI file instead")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [record]",
	Short: "Shows a record measure by measure",
	Long: `Shows the measures of a decoded record as a table. With --midi, lists the
note sets sounding in a MIDI file along with their search keys.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if inspectMidi != "" {
			return inspectMidiFile(out, inspectMidi)
		}

		raw, err := readRecord(cmd, args)
		if err != nil {
			return err
		}
		song, diags, err := newDecoder().Decode(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s by %s (%s, %s)\n", song.Title, song.Author, song.Key, song.Tempo)
		fmt.Fprintln(out, renderMeasures(song))
		fmt.Fprintf(out, "%s measures on %s staffs\n",
			humanize.Comma(int64(song.NumMeasures())), humanize.Comma(int64(len(song.Staffs))))
		for _, d := range diags {
			fmt.Fprintln(out, d.String())
		}
		return nil
	},
}

func renderMeasures(song *model.Song) string {
	columns := []column{
		{title: "Staff", right: true},
		{title: "Bar", right: true},
		{title: "Bars"},
		{title: "Section"},
		{title: "Ending"},
		{title: "Time"},
		{title: "Key"},
		{title: "Slots"},
		{title: "Marks"},
	}
	var rows [][]string
	song.Each(func(ref model.MeasureRef, m *model.Measure) {
		var meter, key string
		if m.Time != nil {
			meter = m.Time.String()
		}
		if m.Key != nil {
			key = m.Key.String()
		}
		slots := make([]string, 0, len(m.Slots))
		for i := range m.Slots {
			s := m.Slots[i].String()
			if s == "" {
				s = "."
			}
			slots = append(slots, s)
		}
		marks := make([]string, 0, len(m.Annotations))
		for _, a := range m.Annotations {
			marks = append(marks, a.String())
		}
		rows = append(rows, []string{
			strconv.Itoa(ref.Staff),
			strconv.Itoa(ref.Measure),
			m.StartBarline.String() + " " + m.StopBarline.String(),
			m.Section,
			m.Ending,
			meter,
			key,
			strings.Join(slots, " "),
			strings.Join(marks, " "),
		})
	})
	return renderTable(columns, rows)
}

func inspectMidiFile(out io.Writer, path string) error {
	s, err := midi.ReadMidiFile(path)
	if err != nil {
		return err
	}
	soundings := chord.GetChords(s)
	rows := make([][]string, 0, len(soundings))
	for _, snd := range soundings {
		notes := make([]string, 0, len(snd.Notes))
		for _, n := range snd.Notes {
			notes = append(notes, strconv.Itoa(int(n)))
		}
		rows = append(rows, []string{
			humanize.Comma(snd.Tick),
			strings.Join(notes, " "),
			chord.KeyOfNotes(snd.Notes),
		})
	}
	fmt.Fprintln(out, renderTable([]column{{title: "Tick", right: true}, {title: "Notes"}, {title: "Key"}}, rows))
	fmt.Fprintf(out, "%s chords in %s tracks\n", humanize.Comma(int64(len(soundings))), humanize.Comma(int64(len(s.Tracks))))
	return nil
}
