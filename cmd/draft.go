package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/annotate"
	"github.com/yumyai/strainmodel/pkg/blast"
	"github.com/yumyai/strainmodel/pkg/draft"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/pipeline"
	"github.com/yumyai/strainmodel/pkg/troubleshoot"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// draftCmd represents the draft command
var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Create a draft model for an isolate from a reference model",
	Long: `Create a draft model for an isolate from a reference model

1. Coding sequences are predicted on the assembly and written to <output>.gbk,
   unless --isolate-genes and --isolate-proteins are given or --no-reannotation
   keeps the CDS features of a GenBank assembly.
2. Reference and isolate proteins are aligned in both directions; reciprocal best hits
   passing the thresholds become orthologs.
3. Reference genes without an ortholog are searched in the whole assembly to find
   loci the annotation missed.
4. Reference genes without any ortholog are removed along with the reactions that
   depend on them, and the remaining genes are renamed to isolate loci.
5. The draft is checked for biomass production on --media. When it does not grow,
   <output>_model.json.troubleshoot_* files are written and the exit code is 101.`,
	RunE: runDraft,
}

func init() {
	rootCmd.AddCommand(draftCmd)

	f := draftCmd.Flags()
	f.String("assembly", "", "isolate assembly (FASTA or GenBank)")
	f.Bool("no-reannotation", false, "keep the CDS features of a GenBank assembly instead of calling genes")
	f.String("ref-model", "", "reference model (COBRA JSON)")
	f.String("ref-genes", "", "reference genes (FASTA)")
	f.String("ref-proteins", "", "reference proteins (FASTA)")
	f.String("ref-genbank", "", "reference CDS features (GenBank), instead of --ref-genes and --ref-proteins")
	f.String("isolate-genes", "", "pre-called isolate genes (FASTA), skips annotation")
	f.String("isolate-proteins", "", "pre-called isolate proteins (FASTA), skips annotation")
	f.String("output", "", "output prefix, its stem becomes the model id")
	f.Float64("min-coverage", 25, "minimum alignment coverage of the query (percent)")
	f.Float64("min-pident", 80, "minimum alignment identity (percent)")
	f.Float64("min-ppos", 0, "minimum alignment positive matches (percent), unset by default")
	f.StringSlice("exempt-genes", draft.DefaultExemptGenes, "artificial genes kept without an ortholog")
	f.Int("gapfill-iterations", troubleshoot.DefaultIterations, "gapfill iterations per threshold when troubleshooting")
	f.String("blastp", "", "blastp executable")
	f.String("blastn", "", "blastn executable")
	f.String("makeblastdb", "", "makeblastdb executable")
	f.String("prodigal", "", "prodigal executable")
	f.String("prodigal-training", "", "prodigal training file")
	f.Duration("lock-timeout", blast.DefaultLockTimeout, "maximum wait for another process building an alignment database")
	growthFlags(draftCmd)
}

func runDraft(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDraft(); err != nil {
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
	ref, err := model.Load(cfg.RefModel)
	if err != nil {
		return err
	}

	ts := troubleshoot.New(d.solver, d.solver)
	ts.Iterations = cfg.GapfillIterations
	p := &pipeline.Pipeline{
		Aligner: blast.NewAligner(cfg.Tools.BlastP, cfg.Tools.BlastN,
			blast.NewIndexManager(blast.MakeBlastDB{Path: cfg.Tools.MakeBlastDB}, cfg.LockTimeout)),
		Annotator:      annotate.Prodigal{Path: cfg.Tools.Prodigal, TrainingFile: cfg.ProdigalTraining},
		Validator:      validate.New(d.solver),
		Troubleshooter: ts,
		Recorder:       d.recorder(),
		Metrics:        d.metrics,
		Store:          d.store,
	}

	start := time.Now()
	opts := pipeline.Options{
		Assembly:        cfg.Assembly,
		NoReannotation:  cfg.NoReannotation,
		IsolateGenes:    cfg.IsolateGenes,
		IsolateProteins: cfg.IsolateProteins,
		Reference:       ref,
		ReferencePath:   cfg.RefModel,
		RefGenbank:      cfg.RefGenbank,
		RefGenes:        cfg.RefGenes,
		RefProteins:     cfg.RefProteins,
		Thresholds: blast.Thresholds{
			MinCoverage:   blast.Value(cfg.MinCoverage),
			MinIdentity:   blast.Value(cfg.MinPident),
			MinPositivity: cfg.MinPpos,
		},
		ExemptGenes: cfg.ExemptGenes,
		OutputDir:   cfg.OutputDir(),
		ModelID:     cfg.ModelID(),
		Media:       med,
		Atmosphere:  atm,
		BiomassID:   cfg.Biomass,
		ScratchDir:  cfg.ScratchDir,
	}
	res, err := p.Run(ctx, opts)
	if res != nil {
		logger.Info("Run finished", zap.String("run_id", res.RunID), zap.String("state", string(res.State)),
			zap.Duration("elapsed", time.Since(start)))
	}

	switch {
	case err == nil:
		verdict(cmd, "%s: model produces biomass (objective %g), run %s",
			cfg.ModelID(), res.Validation.ObjectiveValue, res.RunID)
	case errors.Is(err, pipeline.ErrBiomassFailure):
		verdict(cmd, "%s: model failed to produce biomass, troubleshooting written to %s_*, run %s",
			cfg.ModelID(), opts.TroubleshootPrefix(), res.RunID)
	}
	return err
}
