package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jsphweid/leadsheet/library"
	"github.com/jsphweid/leadsheet/midi"
	"github.com/spf13/cobra"
)

// readRecord returns the record given as the only argument, or read from
// stdin when there is none or it is "-".
func readRecord(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("could not read record from stdin: %w", err)
	}
	record := strings.TrimSpace(string(b))
	if record == "" {
		return "", fmt.Errorf("no record given")
	}
	return record, nil
}

func openLibrary(ctx context.Context) (*library.Store, error) {
	store, err := library.Open(ctx, cfg.Library.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("library opened", "path", store.Path())
	return store, nil
}

func midiOptions() midi.Options {
	opts := midi.DefaultOptions()
	opts.Octave = cfg.MIDI.Octave
	opts.BPM = cfg.MIDI.BPM
	opts.Velocity = uint8(cfg.MIDI.Velocity)
	return opts
}
