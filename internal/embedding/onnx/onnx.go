//go:build onnx

package onnx

import (
	"context"
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/phillt/bernard-sub001/internal/embedding"
)

// Embedder runs all-MiniLM-L6-v2 through ONNX Runtime.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
	maxSeqLen  int
	logger     *slog.Logger
}

// Compile-time interface check.
var _ embedding.Embedder = (*Embedder)(nil)

// New loads the model and tokenizer. It initializes the ONNX Runtime
// environment, which is process-global.
func New(cfg Config, logger *slog.Logger) (*Embedder, error) {
	cfg.defaults()
	if cfg.ModelPath == "" {
		return nil, ErrNoModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedding.onnx")

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
		}
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	logger.Debug("onnx model loaded", "model", cfg.ModelPath, "dimensions", cfg.Dimensions)

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		maxSeqLen:  cfg.MaxSeqLen,
		logger:     logger,
	}, nil
}

// Embed implements embedding.Embedder. The whole batch is run as a single
// inference call padded to the longest input.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoded := make([][]int64, len(texts))
	seqLen := 0
	for i, text := range texts {
		encoded[i] = e.tokenizer.Encode(text, e.maxSeqLen)
		seqLen = max(seqLen, len(encoded[i]))
	}

	batch := len(texts)
	inputIDs := make([]int64, batch*seqLen)
	mask := make([]int64, batch*seqLen)
	typeIDs := make([]int64, batch*seqLen)
	for i, ids := range encoded {
		row := i * seqLen
		copy(inputIDs[row:], ids)
		for j := range ids {
			mask[row+j] = 1
		}
	}

	shape := ort.NewShape(int64(batch), int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer func() { _ = idsTensor.Destroy() }()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer func() { _ = maskTensor.Destroy() }()

	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer func() { _ = typeTensor.Destroy() }()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				_ = out.Destroy()
			}
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type %T", outputs[0])
	}
	outShape := hidden.GetShape()
	if len(outShape) != 3 || outShape[0] != int64(batch) || outShape[2] != int64(e.dimensions) {
		return nil, fmt.Errorf("onnx: unexpected output shape %v", outShape)
	}

	vecs := meanPool(hidden.GetData(), mask, batch, int(outShape[1]), e.dimensions)
	for i := range vecs {
		vecs[i] = embedding.Normalize(vecs[i])
	}
	return vecs, nil
}

// Dimensions implements embedding.Embedder.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
