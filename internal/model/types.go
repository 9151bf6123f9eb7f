package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Default tensor names of the exported colourisation graph.
const (
	DefaultInputName  = "data_l"
	DefaultOutputName = "class8_313_rh"
)

// Metadata describes the exported graph. It is read from a JSON file that
// sits next to the .onnx weights.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	// Temperature anneals the per-bin distribution. Zero means the
	// inference adapter's default.
	Temperature float64 `json:"temperature,omitempty"`
	// ABBins are the a*b* centres of the quantised output bins. Required
	// when the graph emits more than two channels.
	ABBins [][2]float32 `json:"ab_bins,omitempty"`
}

// InputSize returns the lightness input height and width.
func (m Metadata) InputSize() (h, w int) {
	return int(m.InputShape[2]), int(m.InputShape[3])
}

// OutputSize returns the prediction height and width.
func (m Metadata) OutputSize() (h, w int) {
	return int(m.OutputShape[2]), int(m.OutputShape[3])
}

// OutputChannels is 2 for direct a*b* output, or the number of bins.
func (m Metadata) OutputChannels() int {
	return int(m.OutputShape[1])
}

// Validate checks the shapes are NCHW with a single batch and a single
// lightness channel, and fills in default tensor names.
func (m *Metadata) Validate() error {
	if m.InputName == "" {
		m.InputName = DefaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = DefaultOutputName
	}
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 1 {
		return fmt.Errorf("input_shape must be [1,1,H,W], got %v", m.InputShape)
	}
	if len(m.OutputShape) != 4 || m.OutputShape[0] != 1 || m.OutputShape[1] < 2 {
		return fmt.Errorf("output_shape must be [1,Q,H,W] with Q >= 2, got %v", m.OutputShape)
	}
	for _, d := range []int64{m.InputShape[2], m.InputShape[3], m.OutputShape[2], m.OutputShape[3]} {
		if d <= 0 {
			return fmt.Errorf("spatial dimensions must be positive, got in=%v out=%v", m.InputShape, m.OutputShape)
		}
	}
	if q := m.OutputChannels(); q > 2 && len(m.ABBins) != q {
		return fmt.Errorf("output has %d bins but ab_bins lists %d", q, len(m.ABBins))
	}
	if m.Temperature < 0 {
		return fmt.Errorf("temperature must be positive, got %g", m.Temperature)
	}
	return nil
}

// ParseMetadata decodes and validates a metadata document.
func ParseMetadata(data []byte) (Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := metadata.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata: %w", err)
	}
	return metadata, nil
}

// LoadMetadata reads the metadata file at path.
func LoadMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(metaFile)
}

// Tensor is a single-batch NCHW float tensor.
type Tensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}
