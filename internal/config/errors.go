package config

import (
	"errors"
	"fmt"

	"github.com/dshills/pterminal/internal/config/loader"
)

var (
	// ErrValidationFailed matches every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidColor is a theme color that is not #rrggbb.
	ErrInvalidColor = errors.New("invalid color")
)

// ParseError is a config file that could not be decoded.
type ParseError = loader.ParseError

// ValidationError is a decoded setting with an unusable value.
type ValidationError struct {
	Path    string // dotted key, e.g. "scrollback.lines"
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s, got %v", e.Path, e.Message, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }
