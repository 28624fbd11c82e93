package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/sgk"
)

// sgkCmd represents the sgk command
var sgkCmd = &cobra.Command{
	Use:   "sgk",
	Short: "Single gene knockout analysis",
	Long: `Single gene knockout analysis

Each gene of the model is knocked out in turn on --media and the growth of the
mutant is recorded. Results are written as a tab separated table.`,
	RunE: runSGK,
}

func init() {
	rootCmd.AddCommand(sgkCmd)

	f := sgkCmd.Flags()
	f.String("model", "", "model to analyse (COBRA JSON)")
	f.String("output", "", "output table path")
	growthFlags(sgkCmd)
}

func runSGK(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateSGK(); err != nil {
		return err
	}

	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	med, atm, err := d.growth()
	if err != nil {
		return err
	}
	m, err := model.Load(cfg.Model)
	if err != nil {
		return err
	}

	return d.record(ctx, "sgk", m.ID(), func() error {
		results, err := sgk.Run(ctx, d.solver, m, med, atm)
		if err != nil {
			return err
		}
		if err := writeFile(cfg.Output, func(fh *os.File) error { return sgk.WriteTSV(fh, results) }); err != nil {
			return err
		}
		verdict(cmd, "%s: %d knockouts written to %s", m.ID(), len(results), cfg.Output)
		return nil
	})
}
