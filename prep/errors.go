package prep

import (
	"errors"
	"fmt"
)

// Error categories of a run. Every error Run returns wraps exactly one of
// these around the lower level cause, so errors.Is works on both.
var (
	// ErrIO covers input files, tables of contents or directories that
	// cannot be opened or read
	ErrIO = errors.New("input error")
	// ErrConsistency covers input that reads fine but does not add up
	ErrConsistency = errors.New("inconsistent input")
	// ErrResource covers output files that cannot be created or written
	ErrResource = errors.New("output error")
)

func ioErr(err error) error {
	return categorize(ErrIO, err)
}

func consistencyErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrConsistency, fmt.Errorf(format, args...))
}

func resourceErr(err error) error {
	return categorize(ErrResource, err)
}

func categorize(category, err error) error {
	if err == nil || errors.Is(err, ErrIO) || errors.Is(err, ErrConsistency) || errors.Is(err, ErrResource) {
		return err
	}
	return fmt.Errorf("%w: %w", category, err)
}
