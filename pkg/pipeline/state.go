package pipeline

import "fmt"

// State is the stage a run is in.
type State string

const (
	Aligning           State = "ALIGNING"
	Resolving          State = "RESOLVING"
	Assembling         State = "ASSEMBLING"
	Validating         State = "VALIDATING"
	Troubleshooting    State = "TROUBLESHOOTING"
	Done               State = "DONE"
	DoneWithDiagnostic State = "DONE_WITH_DIAGNOSTIC"
	Failed             State = "FAILED"
)

// IsTerminal reports whether a run in s has finished.
func IsTerminal(s State) bool {
	switch s {
	case Done, DoneWithDiagnostic, Failed:
		return true
	}
	return false
}

func isAllowedTransition(from, to State) bool {
	if to == Failed {
		return !IsTerminal(from)
	}
	switch from {
	case Aligning:
		return to == Resolving
	case Resolving:
		return to == Assembling
	case Assembling:
		return to == Validating
	case Validating:
		return to == Done || to == Troubleshooting
	case Troubleshooting:
		return to == DoneWithDiagnostic
	}
	return false
}

// Transition moves *cur from -> to. The expected prior state makes out-of-order calls
// observable; no state is ever re-entered.
func Transition(cur *State, from, to State) error {
	if *cur != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	*cur = to
	return nil
}
