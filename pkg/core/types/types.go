// Package types holds the error taxonomy shared by every pipeline stage.
//
// Each failure class has a sentinel that callers match with errors.Is, and
// the classes that carry context (row numbers, lengths, counts) also have a
// structured type for errors.As.
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInput covers missing files, missing columns, malformed values and
	// invalid configuration.
	ErrInput = errors.New("invalid input")
	// ErrParse is returned for a vector cell that cannot be decoded.
	ErrParse = errors.New("parse error")
	// ErrDimensionMismatch is returned when vectors of one dataset differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInsufficientData is returned when there are too few points for the
	// requested neighbor count.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateDensity is returned when the density percentiles coincide
	// and the estimator is configured to fail rather than fall back.
	ErrDegenerateDensity = errors.New("degenerate density distribution")
)

// ParseError reports a malformed vector cell. Row is zero-based and counts
// data rows only (the header is not a row).
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	v := e.Value
	if len(v) > 32 {
		v = v[:32] + "..."
	}
	return fmt.Sprintf("row %d, column %q: cannot parse %q: %v", e.Row, e.Column, v, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets a ParseError match both ErrParse and ErrInput.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse || target == ErrInput
}

// DimensionMismatchError reports the first vector whose length differs from
// the first vector of the dataset.
type DimensionMismatchError struct {
	Row  int
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch at row %d: expected %d values, got %d", e.Row, e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// InsufficientDataError reports a dataset that is too small for a stage.
type InsufficientDataError struct {
	Stage  string
	Points int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d points, got %d", e.Stage, e.Need, e.Points)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// Inputf builds an ErrInput-wrapping error with a formatted message.
func Inputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// CheckDims verifies that every vector has the length of the first one and
// returns that length.
func CheckDims(vectors [][]float64) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return 0, &DimensionMismatchError{Row: i, Want: dim, Got: len(v)}
		}
	}
	return dim, nil
}
