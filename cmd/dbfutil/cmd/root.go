package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	dbf "github.com/Ulysses-Xu/go-xbase"
	"github.com/Ulysses-Xu/go-xbase/cmd/dbfutil/config"
)

type optionsKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbfutil",
	Short: "Inspect dBase and FoxPro tables",
	Long: `dbfutil reads .dbf tables written by dBase III, dBase IV and
Visual FoxPro, together with their .dbt and .fpt memo files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			loaded, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("strict") {
			cfg.Strict, _ = cmd.Flags().GetBool("strict")
		}
		if cmd.Flags().Changed("encoding") {
			cfg.Encoding, _ = cmd.Flags().GetString("encoding")
		}

		level, err := cfg.Level()
		if err != nil {
			return err
		}
		logger := log.New()
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetLevel(level)

		opts, err := cfg.Options(logger)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), optionsKey{}, opts))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().Bool("strict", false, "reject malformed tables instead of tolerating them")
	rootCmd.PersistentFlags().StringP("encoding", "e", "", "charset overriding the table codepage")
}

func openTable(cmd *cobra.Command, path string) (*dbf.Reader, error) {
	opts, _ := cmd.Context().Value(optionsKey{}).(*dbf.Options)
	return dbf.Open(path, opts)
}
