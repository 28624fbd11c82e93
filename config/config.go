// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yumyai/strainmodel/internal/util"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/validate"
)

// EnvPrefix prefixes every environment variable read into the config,
// e.g. STRAINMODEL_LEDGER_DSN or STRAINMODEL_TOOLS_BLASTP.
const EnvPrefix = "STRAINMODEL"

var ErrInvalid = errors.New("invalid configuration")

// Error is a problem with a single setting.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("--%s %s", e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Tools are the external executables. Empty values fall back to PATH lookups.
type Tools struct {
	BlastP      string `mapstructure:"blastp"`
	BlastN      string `mapstructure:"blastn"`
	MakeBlastDB string `mapstructure:"makeblastdb"`
	Prodigal    string `mapstructure:"prodigal"`
	Solver      string `mapstructure:"solver"`
}

// S3Config is used when artifact-url is an s3:// url.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path-style"`
}

// Config is the root-level settings struct and is a mix of settings from the
// settings file, the environment and the command line.
type Config struct {
	LogLevel   string `mapstructure:"log-level"`
	DataDir    string `mapstructure:"data-dir"`
	ScratchDir string `mapstructure:"scratch-dir"`

	// run history and artifacts
	LedgerDSN       string   `mapstructure:"ledger-dsn"`
	ArtifactURL     string   `mapstructure:"artifact-url"`
	S3              S3Config `mapstructure:"s3"`
	MetricsTextfile string   `mapstructure:"metrics-textfile"`
	Listen          string   `mapstructure:"listen"`

	Tools            Tools         `mapstructure:"tools"`
	ProdigalTraining string        `mapstructure:"prodigal-training"`
	LockTimeout      time.Duration `mapstructure:"lock-timeout"`

	// draft
	Assembly        string   `mapstructure:"assembly"`
	RefModel        string   `mapstructure:"ref-model"`
	RefGenes        string   `mapstructure:"ref-genes"`
	RefProteins     string   `mapstructure:"ref-proteins"`
	RefGenbank      string   `mapstructure:"ref-genbank"`
	NoReannotation  bool     `mapstructure:"no-reannotation"`
	IsolateGenes    string   `mapstructure:"isolate-genes"`
	IsolateProteins string   `mapstructure:"isolate-proteins"`
	MinCoverage     float64  `mapstructure:"min-coverage"`
	MinPident       float64  `mapstructure:"min-pident"`
	MinPpos         *float64 `mapstructure:"-"`
	ExemptGenes     []string `mapstructure:"exempt-genes"`

	// shared by draft, patch and sgk
	Media             string `mapstructure:"media"`
	Atmosphere        string `mapstructure:"atmosphere"`
	Biomass           string `mapstructure:"biomass"`
	GapfillIterations int    `mapstructure:"gapfill-iterations"`
	Output            string `mapstructure:"output"`

	// patch
	DraftModel string `mapstructure:"draft-model"`
	Patch      string `mapstructure:"patch"`

	// fba and sgk
	Model        string  `mapstructure:"model"`
	FBASpec      string  `mapstructure:"fba-spec"`
	FBAOpenValue float64 `mapstructure:"fba-open-value"`
}

// SetDefaults registers the defaults and the environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("listen", "0.0.0.0:8080")
	v.SetDefault("lock-timeout", 60*time.Second)
	v.SetDefault("min-coverage", 25.0)
	v.SetDefault("min-pident", 80.0)
	v.SetDefault("exempt-genes", []string{"KPN_SPONT"})
	v.SetDefault("media", "m9")
	v.SetDefault("biomass", "BIOMASS_")
	v.SetDefault("gapfill-iterations", 5)
	v.SetDefault("fba-open-value", -1000.0)
	v.SetDefault("s3.path-style", false)
}

// Load reads the settings held by v. The settings file, if any, must already be
// read into v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("%w: unable to decode settings: %w", ErrInvalid, err)
	}
	// min-ppos has no default; only a value the user gave counts.
	if v.IsSet("min-ppos") {
		ppos := v.GetFloat64("min-ppos")
		c.MinPpos = &ppos
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return c, &Error{Field: "log-level", Msg: err.Error()}
	}
	return c, nil
}

// OutputDir and ModelID split --output into the directory holding the results and
// the stem shared by every result file and used as the model id.
func (c Config) OutputDir() string { return filepath.Dir(c.Output) }
func (c Config) ModelID() string   { return util.Stem(c.Output) }

// ParsedAtmosphere returns the atmosphere setting, unset when empty.
func (c Config) ParsedAtmosphere() (validate.Atmosphere, error) {
	atm, err := validate.ParseAtmosphere(c.Atmosphere)
	if err != nil {
		return atm, &Error{Field: "atmosphere", Msg: err.Error()}
	}
	return atm, nil
}

// checker collects every problem before reporting, so that one run shows them all.
type checker struct {
	errs []error
}

func (ch *checker) add(field, format string, args ...any) {
	ch.errs = append(ch.errs, &Error{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (ch *checker) required(fields map[string]string, order ...string) {
	for _, f := range order {
		if fields[f] == "" {
			ch.add(f, "is missing")
		}
	}
}

func (ch *checker) together(a, va, b, vb string) {
	switch {
	case va != "" && vb == "":
		ch.add(b, "is required when --%s is given", a)
	case va == "" && vb != "":
		ch.add(a, "is required when --%s is given", b)
	}
}

func (ch *checker) inputs(fields map[string]string, order ...string) {
	for _, f := range order {
		if p := fields[f]; p != "" && !util.FileExists(p) {
			ch.add(f, "input %s does not exist", p)
		}
	}
}

func (ch *checker) output(path string) {
	if path == "" {
		return
	}
	if dir := filepath.Dir(path); !util.DirExists(dir) {
		ch.add("output", "directory %s does not exist", dir)
	}
}

func (ch *checker) percent(field string, v float64) {
	if v < 0 || v > 100 {
		ch.add(field, "must be between 0 and 100, got %g", v)
	}
}

func (ch *checker) growth(c Config) {
	if _, err := validate.ParseAtmosphere(c.Atmosphere); err != nil {
		ch.add("atmosphere", "%s", err)
	}
	if c.Media == "" {
		ch.add("media", "is missing")
	}
}

func (ch *checker) err() error {
	return errors.Join(ch.errs...)
}

// ValidateDraft checks the settings of the draft command.
func (c Config) ValidateDraft() error {
	var ch checker
	fields := map[string]string{
		"assembly":         c.Assembly,
		"ref-model":        c.RefModel,
		"ref-genes":        c.RefGenes,
		"ref-proteins":     c.RefProteins,
		"ref-genbank":      c.RefGenbank,
		"isolate-genes":    c.IsolateGenes,
		"isolate-proteins": c.IsolateProteins,
		"output":           c.Output,
	}
	ch.required(fields, "assembly", "ref-model", "output")
	if c.RefGenbank != "" {
		if c.RefGenes != "" || c.RefProteins != "" {
			ch.add("ref-genbank", "cannot be combined with --ref-genes or --ref-proteins")
		}
	} else {
		ch.required(fields, "ref-genes", "ref-proteins")
	}
	ch.together("isolate-genes", c.IsolateGenes, "isolate-proteins", c.IsolateProteins)
	if c.NoReannotation && c.IsolateGenes != "" {
		ch.add("no-reannotation", "cannot be combined with --isolate-genes")
	}
	ch.inputs(fields, "assembly", "ref-model", "ref-genes", "ref-proteins", "ref-genbank", "isolate-genes", "isolate-proteins")
	ch.output(c.Output)
	ch.percent("min-coverage", c.MinCoverage)
	ch.percent("min-pident", c.MinPident)
	if c.MinPpos != nil {
		ch.percent("min-ppos", *c.MinPpos)
	}
	ch.growth(c)
	if c.GapfillIterations < 1 {
		ch.add("gapfill-iterations", "must be at least 1, got %d", c.GapfillIterations)
	}
	if c.LockTimeout <= 0 {
		ch.add("lock-timeout", "must be positive, got %s", c.LockTimeout)
	}
	return ch.err()
}

// ValidatePatch checks the settings of the patch command.
func (c Config) ValidatePatch() error {
	var ch checker
	fields := map[string]string{
		"draft-model": c.DraftModel,
		"ref-model":   c.RefModel,
		"patch":       c.Patch,
		"output":      c.Output,
	}
	ch.required(fields, "draft-model", "ref-model", "patch", "output")
	ch.inputs(fields, "draft-model", "ref-model", "patch")
	ch.output(c.Output)
	ch.growth(c)
	return ch.err()
}

// ValidateFBA checks the settings of the fba command.
func (c Config) ValidateFBA() error {
	var ch checker
	fields := map[string]string{"model": c.Model, "fba-spec": c.FBASpec, "output": c.Output}
	ch.required(fields, "model", "fba-spec", "output")
	ch.inputs(fields, "model", "fba-spec")
	ch.output(c.Output)
	if c.FBAOpenValue > 0 {
		ch.add("fba-open-value", "must not be positive, got %g", c.FBAOpenValue)
	}
	return ch.err()
}

// ValidateSGK checks the settings of the sgk command.
func (c Config) ValidateSGK() error {
	var ch checker
	fields := map[string]string{"model": c.Model, "output": c.Output}
	ch.required(fields, "model", "output")
	ch.inputs(fields, "model")
	ch.output(c.Output)
	ch.growth(c)
	return ch.err()
}

// ValidateServe checks the settings of the serve command.
func (c Config) ValidateServe() error {
	var ch checker
	ch.required(map[string]string{"ledger-dsn": c.LedgerDSN, "listen": c.Listen}, "ledger-dsn", "listen")
	return ch.err()
}
