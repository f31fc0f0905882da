package record

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrValidation is the kind shared by all add-form validation failures.
var ErrValidation = errors.New("validation failed")

// Validation messages shown to the user.
const (
	MsgMissingName  = "Please enter a name."
	MsgMissingTime  = "Please enter a time."
	MsgInvalidTime  = "Please enter a valid time (e.g., 5.35)."
	MsgTimePositive = "Time must be greater than 0."
)

// ValidationError carries the offending field and a user-facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ParseTime parses the add form's time field.
func ParseTime(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, invalid("score", MsgMissingTime)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, invalid("score", MsgInvalidTime)
	}
	return f, nil
}

// ValidateEntry checks a new entry before any state changes: the trimmed
// name must be non-empty and the score a finite number above zero.
func ValidateEntry(name string, score float64) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", MsgMissingName)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return invalid("score", MsgInvalidTime)
	}
	if score <= 0 {
		return invalid("score", MsgTimePositive)
	}
	return nil
}
