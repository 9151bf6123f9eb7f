// Package model loads the pretrained colourisation network with ONNX Runtime
// and exposes its fixed input and output shapes and a single forward pass.
package model

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

type options struct {
	libraryPath string
}

// Option configures NewSession.
type Option func(*options)

// WithSharedLibrary points ONNX Runtime at a specific onnxruntime shared
// library instead of the platform default.
func WithSharedLibrary(path string) Option {
	return func(o *options) { o.libraryPath = path }
}

// Session is a loaded network with pre-allocated input and output tensors.
// Forward reuses those tensors, so a Session must not run concurrent
// forward passes; the inference adapter serialises calls.
type Session struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewSession initialises the ONNX Runtime environment and loads the graph at
// modelPath described by the metadata file at metadataPath.
func NewSession(modelPath, metadataPath string, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if o.libraryPath != "" {
		ort.SetSharedLibraryPath(o.libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	s, err := newSession(modelPath, metadata)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	return s, nil
}

func newSession(modelPath string, metadata Metadata) (*Session, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Session{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// InputShape returns the lightness height and width the graph accepts.
func (s *Session) InputShape() (h, w int) { return s.Metadata.InputSize() }

// OutputShape returns the height and width of the chroma prediction.
func (s *Session) OutputShape() (h, w int) { return s.Metadata.OutputSize() }

// Forward runs one pass over a row-major lightness plane of InputShape and
// returns a copy of the output tensor.
func (s *Session) Forward(lightness []float32) (Tensor, error) {
	input := s.inputTensor.GetData()
	if len(lightness) != len(input) {
		return Tensor{}, fmt.Errorf("expected %d input values, got %d", len(input), len(lightness))
	}
	copy(input, lightness)

	if err := s.session.Run(); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}

	h, w := s.Metadata.OutputSize()
	return Tensor{
		Channels: s.Metadata.OutputChannels(),
		Height:   h,
		Width:    w,
		Data:     append([]float32(nil), s.outputTensor.GetData()...),
	}, nil
}

// Close releases the tensors, the session and the ONNX environment.
func (s *Session) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
