// Package cmd is for command line interactions with the strainmodel application
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yumyai/strainmodel/config"
	"github.com/yumyai/strainmodel/logger"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "0.1.0"

var cfgFile string

// started is set once a command body runs; earlier failures are usage errors.
var started bool

// flagKeys maps flags onto nested settings keys. Every flag is also bound under its
// own name.
var flagKeys = map[string]string{
	"blastp":        "tools.blastp",
	"blastn":        "tools.blastn",
	"makeblastdb":   "tools.makeblastdb",
	"prodigal":      "tools.prodigal",
	"solver":        "tools.solver",
	"s3-region":     "s3.region",
	"s3-endpoint":   "s3.endpoint",
	"s3-path-style": "s3.path-style",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "strainmodel",
	Short: "Build, patch and simulate strain specific metabolic models",
	Long: `Build, patch and simulate strain specific metabolic models

A draft model is derived from a curated reference model by keeping the reactions whose
genes have orthologs in the isolate genome. Drafts that cannot produce biomass are
troubleshot and the run exits with code 101.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !started && !errors.Is(err, config.ErrInvalid) {
		err = fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return err
}

func init() {
	config.SetDefaults(viper.GetViper())

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "settings file (yaml, json or toml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("data-dir", "", "directory with media_definitions/ and fba_specs/ (default: bundled)")
	pf.String("scratch-dir", "", "parent directory of temporary working directories")
	pf.String("ledger-dsn", "", "run ledger: sqlite file path, sqlite://path or postgres:// url")
	pf.String("artifact-url", "", "mirror results to file:///dir or s3://bucket/prefix")
	pf.String("s3-region", "", "region of the artifact bucket")
	pf.String("s3-endpoint", "", "custom S3 endpoint")
	pf.Bool("s3-path-style", false, "use path style S3 addressing")
	pf.String("metrics-textfile", "", "write run metrics to this textfile collector file")
	pf.String("solver", "", "optimizer executable (default: cobra-solver on PATH)")
}

// setup binds the flags of the running command, reads the settings file and starts
// the logger. Flags are bound here rather than in init because several commands
// share a flag name.
func setup(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return &config.Error{Field: "config", Msg: err.Error()}
		}
	}

	level, err := logger.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return &config.Error{Field: "log-level", Msg: err.Error()}
	}
	if err := logger.InitLogger(level); err != nil {
		return err
	}
	return nil
}

// loadConfig decodes the bound settings and marks the command as started.
func loadConfig() (config.Config, error) {
	started = true
	return config.Load(viper.GetViper())
}

// growthFlags registers the flags shared by commands that check growth on a medium.
func growthFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("media", "m9", "media used to check growth")
	f.String("atmosphere", "", "atmosphere used to check growth: aerobic or anaerobic")
	f.String("biomass", "BIOMASS_", "id of the biomass reaction")
}

// verdict is the one line result printed to stdout.
func verdict(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}
