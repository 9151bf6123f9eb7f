// Package inferencetest provides a scriptable stand-in for the colourisation
// network.
package inferencetest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/colourise-api/internal/model"
)

// ErrForward is returned by a Model built with Failing.
var ErrForward = errors.New("forward pass failed")

// Model records forward passes and answers with Predict.
type Model struct {
	InH, InW   int
	OutH, OutW int
	// Predict computes the output. Nil returns zero a*b* (a gray image).
	Predict func(input []float32) (model.Tensor, error)
	// Delay is slept inside Forward to widen race windows in tests.
	Delay time.Duration

	calls      atomic.Int64
	active     atomic.Int64
	overlapped atomic.Bool

	mu        sync.Mutex
	lastInput []float32
}

// New returns a model with the given input and output sizes.
func New(inH, inW, outH, outW int) *Model {
	return &Model{InH: inH, InW: inW, OutH: outH, OutW: outW}
}

// Failing returns a model whose forward pass always fails.
func Failing(inH, inW, outH, outW int) *Model {
	m := New(inH, inW, outH, outW)
	m.Predict = func([]float32) (model.Tensor, error) { return model.Tensor{}, ErrForward }
	return m
}

func (m *Model) InputShape() (h, w int) { return m.InH, m.InW }
func (m *Model) OutputShape() (h, w int) { return m.OutH, m.OutW }

// Forward implements the model collaborator.
func (m *Model) Forward(input []float32) (model.Tensor, error) {
	m.calls.Add(1)
	if m.active.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	defer m.active.Add(-1)

	m.mu.Lock()
	m.lastInput = append(m.lastInput[:0], input...)
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Predict != nil {
		return m.Predict(input)
	}
	return Constant(m.OutH, m.OutW, 0, 0), nil
}

// Calls is the number of forward passes so far.
func (m *Model) Calls() int { return int(m.calls.Load()) }

// Overlapped reports whether two forward passes ever ran at once.
func (m *Model) Overlapped() bool { return m.overlapped.Load() }

// LastInput returns a copy of the most recent forward input.
func (m *Model) LastInput() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.lastInput...)
}

// Constant is a two-channel output with the same a*b* everywhere.
func Constant(h, w int, a, b float32) model.Tensor {
	n := h * w
	data := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		data[i] = a
		data[n+i] = b
	}
	return model.Tensor{Channels: 2, Height: h, Width: w, Data: data}
}
