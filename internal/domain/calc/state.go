package calc

import "fmt"

type State string

const (
	StatePending   State = "pending"
	StateUpdated   State = "updated"
	StateCompleted State = "completed"
	// StateCleaned is never stored; a cleaned calculation has no row.
	StateCleaned State = "cleaned"
)

const CompleteProgress = 100.0

func (s State) Valid() bool {
	switch s {
	case StatePending, StateUpdated, StateCompleted, StateCleaned:
		return true
	default:
		return false
	}
}

// Transition computes the next state for a progress report. completedNow is
// true only on the single transition into StateCompleted.
func Transition(current State, progress float64) (next State, completedNow bool, err error) {
	complete := progress >= CompleteProgress
	switch current {
	case StatePending, StateUpdated:
		if complete {
			return StateCompleted, true, nil
		}
		return StateUpdated, false, nil
	case StateCompleted:
		if complete {
			return StateCompleted, false, nil
		}
		return current, false, fmt.Errorf("%w: got %.2f", ErrProgressRegression, progress)
	case StateCleaned:
		return current, false, ErrCalculationCleaned
	default:
		return current, false, fmt.Errorf("%w: %q", ErrUnknownState, string(current))
	}
}
