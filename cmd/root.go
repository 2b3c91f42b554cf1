package cmd

import (
	"log/slog"

	"github.com/jsphweid/leadsheet/config"
	"github.com/jsphweid/leadsheet/decode"
	"github.com/jsphweid/leadsheet/logging"
	"github.com/jsphweid/leadsheet/scanner"
	"github.com/spf13/cobra"
)

var (
	configPath string
	strictFlag bool
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "leadsheet",
	Short: "Decode and index lead sheet charts",
	Long: `leadsheet decodes irealbook:// chord chart records into structured songs,
exports them as MIDI and keeps a searchable library of them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, _, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("strict") {
			loaded.Parser.Strict = strictFlag
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		l, err := logging.New(logging.Options{
			Level:  loaded.Logging.Level,
			Format: loaded.Logging.Format,
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./leadsheet.toml or ~/.config/leadsheet/config.toml)")
	flags.BoolVar(&strictFlag, "strict", false, "stop at the first error in a chart")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func newDecoder() *decode.Decoder {
	return decode.NewDecoder(scanner.Options{Strict: cfg.Parser.Strict, Logger: logger})
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
