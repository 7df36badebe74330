package onnx

import "errors"

// ErrNoModel is returned when no model path is configured.
var ErrNoModel = errors.New("onnx: model path is required")

// Config configures the local embedder.
type Config struct {
	// ModelPath is the all-MiniLM-L6-v2 ONNX file.
	ModelPath string

	// TokenizerPath is the matching tokenizer.json.
	TokenizerPath string

	// LibraryPath points at libonnxruntime. Empty uses the runtime's
	// default lookup.
	LibraryPath string

	// Dimensions is the hidden size of the model (384).
	Dimensions int

	// MaxSeqLen caps tokens per text, including [CLS] and [SEP].
	MaxSeqLen int
}

func (c *Config) defaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.MaxSeqLen <= 0 {
		c.MaxSeqLen = 128
	}
}

// meanPool averages the token vectors of each row over its attended
// positions. hidden is laid out [batch][seqLen][dims].
func meanPool(hidden []float32, mask []int64, batch, seqLen, dims int) [][]float32 {
	out := make([][]float32, batch)
	for b := range batch {
		vec := make([]float32, dims)
		var attended float32
		for s := range seqLen {
			if mask[b*seqLen+s] == 0 {
				continue
			}
			attended++
			offset := (b*seqLen + s) * dims
			for d := range dims {
				vec[d] += hidden[offset+d]
			}
		}
		if attended > 0 {
			for d := range vec {
				vec[d] /= attended
			}
		}
		out[b] = vec
	}
	return out
}
