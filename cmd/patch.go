package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/patch"
	"github.com/yumyai/strainmodel/pkg/pipeline"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// patchCmd represents the patch command
var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Add or remove reactions of a draft model",
	Long: `Add or remove reactions of a draft model

The patch file maps model ids to changes:

  {"isolate_1": {"reactions": {"GLCt": "add", "PFL": "remove"}}}

Added reactions are copied from the reference model together with any metabolites
and genes the draft lacks. The patched model is written to --output and checked for
biomass production; the exit code is 101 when it does not grow.`,
	RunE: runPatch,
}

func init() {
	rootCmd.AddCommand(patchCmd)

	f := patchCmd.Flags()
	f.String("draft-model", "", "draft model to patch (COBRA JSON)")
	f.String("ref-model", "", "reference model providing added reactions (COBRA JSON)")
	f.String("patch", "", "patch file (JSON)")
	f.String("output", "", "patched model output path")
	growthFlags(patchCmd)
}

func runPatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidatePatch(); err != nil {
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
	draftModel, err := model.Load(cfg.DraftModel)
	if err != nil {
		return err
	}
	ref, err := model.Load(cfg.RefModel)
	if err != nil {
		return err
	}
	p, err := patch.Load(cfg.Patch, draftModel.ID())
	if err != nil {
		return err
	}

	return d.record(ctx, "patch", draftModel.ID(), func() error {
		res, err := patch.Run(ctx, validate.New(d.solver), patch.Input{
			Draft:      draftModel,
			Reference:  ref,
			Patch:      p,
			Media:      med,
			Atmosphere: atm,
			BiomassID:  cfg.Biomass,
			OutputPath: cfg.Output,
		})
		if err != nil {
			return err
		}
		if !res.Grows {
			verdict(cmd, "%s: patched model failed to produce biomass (%s)", draftModel.ID(), res.Status)
			return fmt.Errorf("%w: patched model %s", pipeline.ErrBiomassFailure, draftModel.ID())
		}
		verdict(cmd, "%s: patched model produces biomass (objective %g), written to %s",
			draftModel.ID(), res.ObjectiveValue, cfg.Output)
		return nil
	})
}
