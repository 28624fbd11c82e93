// Package pipeline builds a strain model from an isolate assembly: it aligns isolate and
// reference proteins, resolves orthologs, assembles and validates the draft model and
// troubleshoots it when it does not grow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/internal/util"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/annotate"
	"github.com/yumyai/strainmodel/pkg/artifact"
	"github.com/yumyai/strainmodel/pkg/blast"
	"github.com/yumyai/strainmodel/pkg/db"
	"github.com/yumyai/strainmodel/pkg/draft"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/metrics"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/ortholog"
	"github.com/yumyai/strainmodel/pkg/seq"
	"github.com/yumyai/strainmodel/pkg/troubleshoot"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// Aligner runs the external aligner. *blast.Aligner implements it.
type Aligner interface {
	RunProtein(ctx context.Context, query, subject string) (*blast.HitTable, error)
	RunNucleotide(ctx context.Context, query, subject string) (*blast.HitTable, error)
}

// Annotator predicts coding features on an assembly. annotate.Prodigal implements it.
type Annotator interface {
	Predict(ctx context.Context, assembly, prefix string) ([]annotate.Feature, error)
}

// Recorder keeps the run history. *db.Ledger implements it.
type Recorder interface {
	StartRun(ctx context.Context, r db.Run) error
	RecordEvent(ctx context.Context, runID, stage, detail string) error
	FinishRun(ctx context.Context, runID, status string, exitCode int, errMsg string) error
	SaveOrthologs(ctx context.Context, runID string, entries []ortholog.Entry) error
}

type Options struct {
	// RunID defaults to a fresh uuid.
	RunID string

	// Assembly is a FASTA or GenBank file.
	Assembly string
	// NoReannotation takes the coding sequences of a GenBank assembly as they are.
	NoReannotation bool
	// IsolateGenes and IsolateProteins, when both set, are used instead of annotating
	// the assembly.
	IsolateGenes    string
	IsolateProteins string

	Reference     model.Model
	ReferencePath string
	// RefGenbank replaces RefGenes and RefProteins with the CDS features of a GenBank file.
	RefGenbank  string
	RefGenes    string
	RefProteins string
	Thresholds    blast.Thresholds
	ExemptGenes   []string
	OutputDir     string
	ModelID       string
	Media         media.Media
	Atmosphere    validate.Atmosphere
	BiomassID     string
	ScratchDir    string
}

// Outputs returns the draft model, gene dictionary and unannotated sequence paths.
func (o Options) Outputs() (modelPath, dictionary, unannotated string) {
	prefix := filepath.Join(o.OutputDir, o.ModelID)
	return prefix + "_model.json", prefix + "_gene_dictionary.csv", prefix + "_unannotated_sequences.fasta"
}

// TroubleshootPrefix is the prefix of the troubleshooting artifacts.
func (o Options) TroubleshootPrefix() string {
	modelPath, _, _ := o.Outputs()
	return modelPath + ".troubleshoot"
}

// GenbankOutput is the annotated assembly written when the pipeline calls genes itself.
func (o Options) GenbankOutput() string {
	return filepath.Join(o.OutputDir, o.ModelID+".gbk")
}

// check rejects unusable options before any tool runs and returns the assembly format.
func (o Options) check() (annotate.Format, error) {
	if o.Reference == nil {
		return "", fmt.Errorf("%w: no reference model", ErrInput)
	}
	if o.ModelID == "" {
		return "", fmt.Errorf("%w: no model id", ErrInput)
	}
	if o.BiomassID != "" {
		if _, ok := o.Reference.Reaction(o.BiomassID); !ok {
			return "", fmt.Errorf("%w: biomass reaction %q is not in the reference model", ErrInput, o.BiomassID)
		}
	}

	paths := []string{o.Assembly}
	if o.RefGenbank != "" {
		if o.RefGenes != "" || o.RefProteins != "" {
			return "", fmt.Errorf("%w: a GenBank reference replaces reference genes and proteins", ErrInput)
		}
		paths = append(paths, o.RefGenbank)
	} else {
		paths = append(paths, o.RefGenes, o.RefProteins)
	}
	if o.IsolateGenes != "" || o.IsolateProteins != "" {
		if o.IsolateGenes == "" || o.IsolateProteins == "" {
			return "", fmt.Errorf("%w: isolate genes and proteins must be given together", ErrInput)
		}
		if o.NoReannotation {
			return "", fmt.Errorf("%w: pre-called isolate genes cannot be combined with keeping the assembly annotation", ErrInput)
		}
		paths = append(paths, o.IsolateGenes, o.IsolateProteins)
	}
	for _, p := range paths {
		if !util.FileExists(p) {
			return "", fmt.Errorf("%w: input file %q does not exist", ErrInput, p)
		}
	}
	if !util.DirExists(o.OutputDir) {
		return "", fmt.Errorf("%w: output directory %q does not exist", ErrInput, o.OutputDir)
	}

	format, err := annotate.DetectFormat(o.Assembly)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInput, err)
	}
	if o.NoReannotation && format != annotate.FormatGenbank {
		return "", fmt.Errorf("%w: the annotation of a %s assembly cannot be kept, a GenBank assembly is needed", ErrInput, format)
	}
	return format, nil
}

type Result struct {
	RunID      string
	State      State
	Orthologs  *ortholog.Map
	Model      model.Model
	Validation validate.Result
	Report     *troubleshoot.Report
	Artifacts  []string
}

type Pipeline struct {
	Aligner        Aligner
	Annotator      Annotator
	Validator      *validate.Validator
	Troubleshooter *troubleshoot.Troubleshooter

	// Optional collaborators.
	Recorder Recorder
	Metrics  *metrics.Metrics
	Store    artifact.Store
}

// run carries the state of one invocation.
type run struct {
	p       *Pipeline
	opts    Options
	format  annotate.Format
	res     *Result
	scratch string
	entered time.Time

	// contigs and annotated hold the assembly and the coding sequences called on it,
	// written as GenBank with the draft.
	contigs   []seq.Record
	annotated []annotate.Coding
}

// Run executes the pipeline. A draft that does not grow returns the result together
// with an error wrapping ErrBiomassFailure after the troubleshooting artifacts are
// written. Failures before validation write no model.
func (p *Pipeline) Run(ctx context.Context, opts Options) (res *Result, err error) {
	format, err := opts.check()
	if err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	scratch, err := os.MkdirTemp(opts.ScratchDir, "strainmodel-"+opts.RunID+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	r := &run{
		p:       p,
		opts:    opts,
		format:  format,
		res:     &Result{RunID: opts.RunID, State: Aligning},
		scratch: scratch,
		entered: time.Now(),
	}
	logger.Info("Starting run", zap.String("run_id", opts.RunID), zap.String("model", opts.ModelID))
	r.record(func(rec Recorder) error {
		return rec.StartRun(ctx, db.Run{
			ID:        opts.RunID,
			Command:   "draft",
			Isolate:   opts.ModelID,
			Reference: opts.ReferencePath,
			Status:    string(Aligning),
		})
	})
	defer func() { r.finish(ctx, err) }()

	if err := r.execute(ctx); err != nil {
		return r.res, err
	}
	return r.res, nil
}

func (r *run) execute(ctx context.Context) error {
	hits, err := r.align(ctx)
	if err != nil {
		return err
	}
	if err := r.advance(ctx, Aligning, Resolving); err != nil {
		return err
	}
	rescued, err := r.resolve(ctx, &hits)
	if err != nil {
		return err
	}
	if err := r.advance(ctx, Resolving, Assembling); err != nil {
		return err
	}
	if err := r.assemble(rescued); err != nil {
		return err
	}
	if err := r.advance(ctx, Assembling, Validating); err != nil {
		return err
	}

	val, err := r.p.Validator.Validate(ctx, r.res.Model, r.opts.Media, r.opts.Atmosphere, r.opts.BiomassID)
	if err != nil {
		return err
	}
	r.res.Validation = val
	if val.Grows {
		logger.Info("Model produces biomass", zap.String("model", r.opts.ModelID), zap.Float64("objective", val.ObjectiveValue))
		if err := r.advance(ctx, Validating, Done); err != nil {
			return err
		}
		r.mirror(ctx)
		return nil
	}

	logger.Error("Model failed to produce biomass", zap.String("model", r.opts.ModelID),
		zap.String("status", val.Status), zap.Float64("objective", val.ObjectiveValue))
	if err := r.advance(ctx, Validating, Troubleshooting); err != nil {
		return err
	}
	return r.troubleshoot(ctx, val.Model, hits)
}

// advance transitions the run, timing the stage just left and recording the event.
func (r *run) advance(ctx context.Context, from, to State) error {
	if err := Transition(&r.res.State, from, to); err != nil {
		return err
	}
	now := time.Now()
	if r.p.Metrics != nil {
		r.p.Metrics.ObserveStage(string(from), now.Sub(r.entered))
	}
	r.entered = now
	logger.Debug("Stage finished", zap.String("run_id", r.opts.RunID), zap.String("stage", string(from)), zap.String("next", string(to)))
	r.record(func(rec Recorder) error { return rec.RecordEvent(ctx, r.opts.RunID, string(to), "") })
	return nil
}

// record runs fn against the recorder. The ledger is auxiliary, so failures only warn.
func (r *run) record(fn func(Recorder) error) {
	if r.p.Recorder == nil {
		return
	}
	if err := fn(r.p.Recorder); err != nil {
		logger.Warn("Failed to update run ledger", zap.String("run_id", r.opts.RunID), zap.Error(err))
	}
}

func (r *run) finish(ctx context.Context, err error) {
	code := ExitCode(err)
	if err != nil && code != ExitBiomassFailure && !IsTerminal(r.res.State) {
		from := r.res.State
		if terr := Transition(&r.res.State, from, Failed); terr == nil && r.p.Metrics != nil {
			r.p.Metrics.ObserveStage(string(from), time.Since(r.entered))
		}
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.record(func(rec Recorder) error {
		return rec.FinishRun(ctx, r.opts.RunID, string(r.res.State), code, msg)
	})
	if r.p.Metrics != nil {
		r.p.Metrics.RunFinished(Outcome(err))
	}
}

type alignment struct {
	// assembly is a FASTA copy of the isolate assembly in the scratch dir.
	assembly    string
	contigs     []seq.Record
	genome      map[string]string
	annotation  *annotate.Genome
	refGenes    map[string]string
	refProteins string
	isoProteins string
	protein     *blast.HitTable
	reverse     *blast.HitTable
	nucleotide  *blast.HitTable
}

// readAssembly loads the assembly and copies its contigs to the scratch dir, where
// the nucleotide database is built.
func (r *run) readAssembly(a *alignment) error {
	if r.format == annotate.FormatGenbank {
		g, err := annotate.ReadGenbank(r.opts.Assembly)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInput, err)
		}
		a.annotation = g
		a.contigs = g.Contigs
	} else {
		contigs, err := seq.ReadFasta(r.opts.Assembly)
		if err != nil {
			return err
		}
		a.contigs = contigs
	}
	a.genome = make(map[string]string, len(a.contigs))
	for _, c := range a.contigs {
		a.genome[c.ID] = c.Sequence
	}
	a.assembly = filepath.Join(r.scratch, "assembly.fasta")
	return seq.WriteFastaFile(a.assembly, a.contigs)
}

// referenceSequences returns the reference gene and protein FASTA files, extracting
// them from the GenBank reference when one is given.
func (r *run) referenceSequences() (genes, proteins string, err error) {
	if r.opts.RefGenbank == "" {
		return r.opts.RefGenes, r.opts.RefProteins, nil
	}
	g, err := annotate.ReadGenbank(r.opts.RefGenbank)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInput, err)
	}
	logger.Info("Read reference coding sequences", zap.String("genbank", r.opts.RefGenbank), zap.Int("features", len(g.Coding)))
	return annotate.WriteCoding(r.scratch, "reference", g.Coding)
}

func (r *run) isolateCoding(ctx context.Context, a *alignment) (genes, proteins string, err error) {
	switch {
	case r.opts.IsolateGenes != "":
		logger.Info("Using provided isolate genes", zap.String("genes", r.opts.IsolateGenes), zap.String("proteins", r.opts.IsolateProteins))
		return r.opts.IsolateGenes, r.opts.IsolateProteins, nil
	case r.opts.NoReannotation:
		logger.Info("Using assembly annotation", zap.String("assembly", r.opts.Assembly), zap.Int("features", len(a.annotation.Coding)))
		return annotate.WriteCoding(r.scratch, "isolate", a.annotation.Coding)
	case r.p.Annotator == nil:
		return "", "", fmt.Errorf("%w: no gene caller configured and no isolate genes given", ErrInput)
	}

	features, err := r.p.Annotator.Predict(ctx, a.assembly, r.opts.ModelID)
	if err != nil {
		return "", "", err
	}
	coding, err := annotate.Extract(features, a.genome)
	if err != nil {
		return "", "", err
	}
	r.contigs, r.annotated = a.contigs, coding
	logger.Info("Annotated assembly", zap.String("assembly", r.opts.Assembly), zap.Int("features", len(coding)))
	return annotate.WriteCoding(r.scratch, "isolate", coding)
}

func (r *run) align(ctx context.Context) (alignment, error) {
	var a alignment
	if err := r.readAssembly(&a); err != nil {
		return a, err
	}
	refGenes, refProteins, err := r.referenceSequences()
	if err != nil {
		return a, err
	}
	a.refProteins = refProteins
	if a.refGenes, err = seq.ReadFastaMap(refGenes); err != nil {
		return a, err
	}
	proteins, err := seq.ReadFastaMap(refProteins)
	if err != nil {
		return a, err
	}
	refIDs := r.opts.Reference.GeneIDs()
	draft.CheckReference(refIDs, a.refGenes, "genes")
	draft.CheckReference(refIDs, proteins, "proteins")

	if _, a.isoProteins, err = r.isolateCoding(ctx, &a); err != nil {
		return a, err
	}

	if a.protein, err = r.p.Aligner.RunProtein(ctx, a.refProteins, a.isoProteins); err != nil {
		return a, err
	}
	if a.reverse, err = r.p.Aligner.RunProtein(ctx, a.isoProteins, a.refProteins); err != nil {
		return a, err
	}
	logger.Info("Aligned proteins", zap.Int("reference_hits", a.protein.Count()), zap.Int("isolate_hits", a.reverse.Count()))
	return a, nil
}

func (r *run) resolve(ctx context.Context, a *alignment) ([]seq.Record, error) {
	orthologs := ortholog.Resolve(
		blast.Filter(a.protein, r.opts.Thresholds),
		blast.Filter(a.reverse, r.opts.Thresholds),
		r.opts.Reference.GeneIDs(),
	)
	r.res.Orthologs = orthologs

	unmatched := draft.MissingGenes(r.opts.Reference, orthologs, r.opts.ExemptGenes)
	var rescued []seq.Record
	if len(unmatched) > 0 {
		var query []seq.Record
		for _, g := range unmatched {
			if s, ok := a.refGenes[g]; ok {
				query = append(query, seq.Record{ID: g, Sequence: s})
			}
		}
		if len(query) > 0 {
			queryPath := filepath.Join(r.scratch, "unmatched_reference_genes.fasta")
			if err := seq.WriteFastaFile(queryPath, query); err != nil {
				return nil, err
			}
			hits, err := r.p.Aligner.RunNucleotide(ctx, queryPath, a.assembly)
			if err != nil {
				return nil, err
			}
			a.nucleotide = hits
			if rescued, err = ortholog.Rescue(orthologs, unmatched, a.genome, hits); err != nil {
				return nil, err
			}
		}
	}

	annotated := orthologs.CountKind(ortholog.Annotated)
	unannotated := orthologs.CountKind(ortholog.Unannotated)
	logger.Info("Resolved orthologs",
		zap.Int("annotated", annotated),
		zap.Int("unannotated", unannotated),
		zap.Int("unmatched", len(unmatched)-unannotated),
	)
	if r.p.Metrics != nil {
		r.p.Metrics.AddOrthologs(string(ortholog.Annotated), annotated)
		r.p.Metrics.AddOrthologs(string(ortholog.Unannotated), unannotated)
	}
	r.record(func(rec Recorder) error { return rec.SaveOrthologs(ctx, r.opts.RunID, orthologs.Entries()) })
	return rescued, nil
}

func (r *run) assemble(rescued []seq.Record) error {
	r.res.Model = draft.Assemble(r.opts.Reference, r.res.Orthologs, r.opts.ModelID, r.opts.ExemptGenes)

	modelPath, dictionary, unannotated := r.opts.Outputs()
	outputs := []output{
		{modelPath, func(p string) error { return model.Save(r.res.Model, p) }},
		{dictionary, r.res.Orthologs.WriteDictionaryFile},
		{unannotated, func(p string) error { return seq.WriteFastaFile(p, rescued) }},
	}
	if r.annotated != nil {
		outputs = append(outputs, output{r.opts.GenbankOutput(), func(p string) error {
			return annotate.WriteGenbank(p, r.contigs, r.annotated)
		}})
	}
	if err := writeAll(outputs); err != nil {
		return err
	}
	for _, o := range outputs {
		r.res.Artifacts = append(r.res.Artifacts, o.path)
	}
	logger.Info("Wrote draft model", zap.String("path", modelPath))
	return nil
}

// troubleshoot writes the diagnostic artifacts and always ends the run with
// ErrBiomassFailure; an exhausted gapfill ladder is logged and joined to it.
func (r *run) troubleshoot(ctx context.Context, configured model.Model, a alignment) error {
	hits := troubleshoot.Hits{Protein: a.protein, Nucleotide: a.nucleotide}
	report, tsErr := r.p.Troubleshooter.Run(ctx, r.opts.Reference, configured, hits, r.opts.BiomassID)
	if tsErr != nil && !errors.Is(tsErr, troubleshoot.ErrGapfillExhausted) {
		return tsErr
	}
	r.res.Report = report

	written, err := report.WriteArtifacts(r.opts.TroubleshootPrefix(), r.opts.Reference, configured)
	if err != nil {
		return err
	}
	r.res.Artifacts = append(r.res.Artifacts, written...)

	if r.p.Metrics != nil {
		threshold := -1.0
		if tsErr == nil {
			threshold = report.Gapfill.Threshold
		}
		r.p.Metrics.SetGapfillThreshold(threshold)
	}
	if tsErr != nil {
		logger.Error("Gapfilling failed", zap.String("model", r.opts.ModelID), zap.Error(tsErr))
	}
	logger.Info("Wrote troubleshooting artifacts", zap.Strings("paths", written))

	if err := r.advance(ctx, Troubleshooting, DoneWithDiagnostic); err != nil {
		return err
	}
	r.mirror(ctx)
	return errors.Join(ErrBiomassFailure, tsErr)
}

// mirror copies the written artifacts to the store under the run id. The local files
// are the result, so a failed upload only warns.
func (r *run) mirror(ctx context.Context) {
	if r.p.Store == nil || len(r.res.Artifacts) == 0 {
		return
	}
	keys, err := artifact.Mirror(ctx, r.p.Store, r.opts.RunID, r.res.Artifacts...)
	if err != nil {
		logger.Warn("Failed to mirror artifacts", zap.String("run_id", r.opts.RunID), zap.Error(err))
		return
	}
	logger.Info("Mirrored artifacts", zap.String("run_id", r.opts.RunID), zap.Int("count", len(keys)))
}
