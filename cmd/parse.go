package cmd

import (
	"encoding/json"

	"github.com/jsphweid/leadsheet/decode"
	"github.com/jsphweid/leadsheet/model"
	"github.com/spf13/cobra"
)

var parseCompact bool

func init() {
	parseCmd.Flags().BoolVar(&parseCompact, "compact", false, "print the JSON on one line")
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse [record]",
	Short: "Decodes a record and prints the song as JSON",
	Long: `Decodes an irealbook:// record, percent-encoded or not, and prints the
song together with any diagnostics. Reads the record from stdin when no
argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readRecord(cmd, args)
		if err != nil {
			return err
		}
		song, diags, err := newDecoder().Decode(raw)
		if err != nil {
			return err
		}
		for _, d := range diags {
			logger.Warn("chart diagnostic", "severity", d.Severity.String(), "pos", d.Err.Pos, "error", d.Err.Err.Error())
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if !parseCompact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(model.ParseResponse{Song: song, Diagnostics: decode.Wire(diags)})
	},
}
