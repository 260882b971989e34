package errors

import (
	"errors"
	"fmt"
)

var (
	// Input errors
	ErrDecodeFailure   = errors.New("failed to decode image")
	ErrDegenerateInput = errors.New("pixel buffer too small for feature extraction")
	ErrInvalidBuffer   = errors.New("pixel buffer length does not match its dimensions")

	// Feature errors
	ErrInvalidBins       = errors.New("invalid histogram bin count")
	ErrDimensionMismatch = errors.New("feature vectors have different bin counts")
	ErrInvalidWeights    = errors.New("invalid similarity weights")

	// Dataset errors
	ErrEmptyDataset   = errors.New("dataset has no images")
	ErrLoadInProgress = errors.New("dataset load already in progress")
)

// ItemError tags a failure with the identifier of the image that caused it.
type ItemError struct {
	ID  string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
