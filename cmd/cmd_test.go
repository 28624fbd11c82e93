package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yumyai/strainmodel/config"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/db"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/model/modeltest"
	"github.com/yumyai/strainmodel/pkg/pipeline"
)

// createFakeSolver writes a bash script answering every optimize call with value.
func createFakeSolver(t *testing.T, dir, value string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are bash scripts")
	}
	path := filepath.Join(dir, "cobra-solver")
	body := "#!/usr/bin/env bash\n" +
		`[ "$1" = "optimize" ] || exit 9` + "\n" +
		`echo '{"status":"optimal","objective_value":` + value + `}'` + "\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the command line args against a clean flag and settings state.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
	viper.Reset()
	config.SetDefaults(viper.GetViper())
	cfgFile = ""
	started = false
	t.Cleanup(logger.InitNop)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), pipeline.ExitCode(err)
}

func writeToy(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "toy.json")
	if err := model.Save(modeltest.Toy(), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMediaCommand(t *testing.T) {
	out, code := execute(t, "media")
	if code != 0 || !strings.Contains(out, "media\tm9\n") || !strings.Contains(out, "spec\tm9\n") {
		t.Errorf("exit %d, output:\n%s", code, out)
	}

	out, code = execute(t, "media", "m9")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	var doc struct {
		Exchanges map[string]float64 `json:"exchanges"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil || doc.Exchanges["EX_glc__D_e"] != -20 {
		t.Errorf("m9 = %s (%v)", out, err)
	}

	if _, code := execute(t, "media", "lb"); code != pipeline.ExitInputError {
		t.Errorf("unknown media exit = %d", code)
	}
}

func TestSGKCommandRecordsRun(t *testing.T) {
	dir := t.TempDir()
	solver := createFakeSolver(t, dir, "0.5")
	ledgerPath := filepath.Join(dir, "runs.db")
	output := filepath.Join(dir, "sgk.tsv")

	out, code := execute(t, "sgk",
		"--model", writeToy(t, dir),
		"--output", output,
		"--solver", solver,
		"--scratch-dir", dir,
		"--ledger-dsn", ledgerPath,
		"--metrics-textfile", filepath.Join(dir, "strainmodel.prom"),
		"--log-level", "error",
	)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if !strings.Contains(out, "toy: 6 knockouts written") {
		t.Errorf("verdict = %q", out)
	}
	table, err := os.ReadFile(output)
	if err != nil || !strings.HasPrefix(string(table), "ids\tgrowth\tstatus\n") {
		t.Errorf("table = %q (%v)", table, err)
	}
	prom, err := os.ReadFile(filepath.Join(dir, "strainmodel.prom"))
	if err != nil || !strings.Contains(string(prom), `strainmodel_runs_total{outcome="success"} 1`) {
		t.Errorf("metrics textfile = %s (%v)", prom, err)
	}

	ledger, err := db.Open(context.Background(), ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	runs, err := ledger.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %+v (%v)", runs, err)
	}
	if runs[0].Command != "sgk" || runs[0].Status != string(pipeline.Done) || runs[0].Isolate != "toy" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestPatchCommandBiomassFailure(t *testing.T) {
	dir := t.TempDir()
	solver := createFakeSolver(t, dir, "0")
	toy := writeToy(t, dir)
	patchFile := filepath.Join(dir, "patch.json")
	if err := os.WriteFile(patchFile, []byte(`{"toy": {"reactions": {"ATPM": "remove"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "patched.json")

	out, code := execute(t, "patch",
		"--draft-model", toy, "--ref-model", toy, "--patch", patchFile,
		"--output", output, "--solver", solver, "--scratch-dir", dir, "--log-level", "error",
	)
	if code != pipeline.ExitBiomassFailure {
		t.Fatalf("exit %d: %s", code, out)
	}
	patched, err := model.Load(output)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := patched.Reaction("ATPM"); ok {
		t.Error("ATPM was not removed")
	}
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"fba", "--nope"}},
		{"unknown command", []string{"assemble"}},
		{"missing inputs", []string{"fba", "--output", filepath.Join(dir, "x.tsv")}},
		{"bad log level", []string{"media", "--log-level", "loud"}},
		{"bad atmosphere", []string{"sgk", "--model", writeToy(t, dir), "--output", filepath.Join(dir, "x.tsv"), "--atmosphere", "space"}},
		{"missing settings file", []string{"media", "--config", filepath.Join(dir, "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out, code := execute(t, tt.args...); code != pipeline.ExitInputError {
				t.Errorf("exit %d, want %d: %s", code, pipeline.ExitInputError, out)
			}
		})
	}
}

func TestSettingsFile(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(settings, []byte("media: tsa\nmin-pident: 95\ntools:\n  blastp: /opt/blast/bin/blastp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	growthcheck := &cobra.Command{
		Use: "growthcheck",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = loadConfig()
			return err
		},
	}
	growthFlags(growthcheck)
	rootCmd.AddCommand(growthcheck)
	defer rootCmd.RemoveCommand(growthcheck)

	if out, code := execute(t, "growthcheck", "--config", settings, "--media", "m9"); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	if cfg.Media != "m9" {
		t.Errorf("flag must win over the settings file, got media %q", cfg.Media)
	}
	if cfg.MinPident != 95 || cfg.Tools.BlastP != "/opt/blast/bin/blastp" {
		t.Errorf("settings file not applied: %+v", cfg)
	}
}
