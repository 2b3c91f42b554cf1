package cmd

import (
	"fmt"
	"os"

	"github.com/jsphweid/leadsheet/midi"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportBPM    float64
	exportOctave int
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "MIDI file to write")
	exportCmd.Flags().Float64Var(&exportBPM, "bpm", 0, "tempo, overrides midi.bpm")
	exportCmd.Flags().IntVar(&exportOctave, "octave", -1, "octave of chord roots, overrides midi.octave")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [record]",
	Short: "Writes a record as a MIDI file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readRecord(cmd, args)
		if err != nil {
			return err
		}
		song, _, err := newDecoder().Decode(raw)
		if err != nil {
			return err
		}

		opts := midiOptions()
		if exportBPM > 0 {
			opts.BPM = exportBPM
		}
		if exportOctave >= 0 {
			opts.Octave = exportOctave
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", exportOutput, err)
		}
		if err := midi.Write(f, song, opts); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("midi written", "path", exportOutput, "title", song.Title, "bpm", opts.BPM)
		return nil
	},
}
