package calc

import "errors"

var (
	ErrCalculationNotFound = errors.New("calculation not found")
	ErrProgressRegression  = errors.New("progress regression on completed calculation")
	ErrCalculationCleaned  = errors.New("calculation already cleaned up")
	ErrUnknownState        = errors.New("unknown calculation state")
)

// IsRejection reports whether err is a business-rule rejection of an update.
func IsRejection(err error) bool {
	return errors.Is(err, ErrProgressRegression) || errors.Is(err, ErrCalculationCleaned)
}
