// Package failure defines the error kinds a colourisation request can end in.
//
// Every kind is fatal to the request that produced it. The boundary layers
// use Classify to turn an error chain into a response status or exit code.
package failure

import (
	"errors"
	"fmt"
)

// ErrInvalidShape reports an image or plane whose dimensions or channel
// layout do not match what an operation expects.
var ErrInvalidShape = errors.New("invalid shape")

// Kind is the coarse classification of a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInference
	KindStorage
	KindPipeline
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInference:
		return "inference"
	case KindStorage:
		return "storage"
	case KindPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// InvalidInputError is a malformed or missing source image: bad URL,
// unreadable file, undecodable bytes or wrong channel count.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err == nil {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// InvalidInput wraps err as an InvalidInputError.
func InvalidInput(reason string, err error) error {
	return &InvalidInputError{Reason: reason, Err: err}
}

// InferenceError is a failure of the model collaborator, either a failed
// forward pass or an output of unexpected shape.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return "inference failed"
	}
	return "inference failed: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error { return e.Err }

// PipelineError wraps the failure of one colourisation stage.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// StorageError is a blob store that could not be reached or rejected a call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Classify returns the most specific kind found in err's chain. A pipeline
// error caused by a bad input or a failed model reports the cause.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		invalid   *InvalidInputError
		inference *InferenceError
		storage   *StorageError
		pipeline  *PipelineError
	)
	switch {
	case errors.As(err, &invalid), errors.Is(err, ErrInvalidShape):
		return KindInvalidInput
	case errors.As(err, &inference):
		return KindInference
	case errors.As(err, &storage):
		return KindStorage
	case errors.As(err, &pipeline):
		return KindPipeline
	default:
		return KindUnknown
	}
}

// Stage returns the pipeline stage named in err's chain, or "".
func Stage(err error) string {
	var pipeline *PipelineError
	if errors.As(err, &pipeline) {
		return pipeline.Stage
	}
	return ""
}
