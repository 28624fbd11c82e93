package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yumyai/strainmodel/pkg/fba"
	"github.com/yumyai/strainmodel/pkg/model"
)

// fbaCmd represents the fba command
var fbaCmd = &cobra.Command{
	Use:   "fba",
	Short: "Simulate growth on media with flux balance analysis",
	Long: `Simulate growth on media with flux balance analysis

Every spec of --fba-spec is run in each of its atmospheres. defined_exchanges_only
opens exactly the listed exchanges; potential_element_sources additionally opens each
exchange able to supply a missing carbon, phosphorus, nitrogen or sulfur source, one
combination at a time. Results are written as a tab separated table.`,
	RunE: runFBA,
}

func init() {
	rootCmd.AddCommand(fbaCmd)

	f := fbaCmd.Flags()
	f.String("model", "", "model to simulate (COBRA JSON)")
	f.String("fba-spec", "", "FBA spec file (JSON)")
	f.String("output", "", "output table path")
	f.Float64("fba-open-value", fba.DefaultOpenValue, "lower bound of opened exchanges")
}

func runFBA(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateFBA(); err != nil {
		return err
	}

	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	m, err := model.Load(cfg.Model)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(cfg.FBASpec)
	if err != nil {
		return err
	}
	specs, err := fba.ParseSpecs(data, d.registry)
	if err != nil {
		return err
	}

	return d.record(ctx, "fba", m.ID(), func() error {
		rows, err := fba.NewRunner(d.solver, cfg.FBAOpenValue).Run(ctx, m, specs)
		if err != nil {
			return err
		}
		if err := writeFile(cfg.Output, func(fh *os.File) error { return fba.WriteTSV(fh, rows) }); err != nil {
			return err
		}
		verdict(cmd, "%s: %d simulations written to %s", m.ID(), len(rows), cfg.Output)
		return nil
	})
}

// writeFile creates path and removes it again when write fails, so that a result
// file only exists for a successful stage.
func writeFile(path string, write func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		os.Remove(path)
		return err
	}
	return fh.Close()
}
