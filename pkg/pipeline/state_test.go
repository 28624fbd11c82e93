package pipeline

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/yumyai/strainmodel/config"
	"github.com/yumyai/strainmodel/internal/command"
	"github.com/yumyai/strainmodel/pkg/fba"
	"github.com/yumyai/strainmodel/pkg/troubleshoot"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		cur      State
		from, to State
		ok       bool
	}{
		{"align to resolve", Aligning, Aligning, Resolving, true},
		{"validate to done", Validating, Validating, Done, true},
		{"validate to troubleshoot", Validating, Validating, Troubleshooting, true},
		{"troubleshoot to diagnostic", Troubleshooting, Troubleshooting, DoneWithDiagnostic, true},
		{"fail mid run", Assembling, Assembling, Failed, true},
		{"skip a stage", Aligning, Aligning, Assembling, false},
		{"re-enter", Resolving, Resolving, Aligning, false},
		{"wrong expected state", Resolving, Aligning, Resolving, false},
		{"leave terminal", Done, Done, Failed, false},
		{"troubleshoot to done", Troubleshooting, Troubleshooting, Done, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := tt.cur
			err := Transition(&cur, tt.from, tt.to)
			if tt.ok {
				if err != nil || cur != tt.to {
					t.Errorf("Transition = %v, state %s", err, cur)
				}
				return
			}
			if err == nil {
				t.Errorf("transition %s -> %s accepted", tt.from, tt.to)
			}
			if cur != tt.cur {
				t.Errorf("state changed on rejected transition: %s", cur)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"biomass", fmt.Errorf("run: %w", ErrBiomassFailure), 101},
		{"biomass with exhausted ladder", errors.Join(ErrBiomassFailure, troubleshoot.ErrGapfillExhausted), 101},
		{"config", &config.Error{Field: "media", Msg: "unknown"}, 1},
		{"spec", &fba.SpecError{Spec: "m9", Msg: "bad"}, 1},
		{"missing file", fmt.Errorf("open: %w", os.ErrNotExist), 1},
		{"input", ErrInput, 1},
		{"tool", &command.Error{Cmd: "blastp", Err: errors.New("exit status 2")}, 2},
		{"other", errors.New("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
	if Outcome(nil) != "success" || Outcome(ErrBiomassFailure) != "biomass_failure" {
		t.Error("unexpected outcome labels")
	}
}
