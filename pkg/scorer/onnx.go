package scorer

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/rerankd/rerankd/pkg/device"
)

const (
	// DefaultModel is the published reranker loaded when no override is set.
	DefaultModel = "BAAI/bge-reranker-v2-gemma"

	// DefaultMaxLength caps the combined query+document token length.
	DefaultMaxLength = 512

	// DefaultBatchSize is how many pairs run through one session call.
	DefaultBatchSize = 16
)

// Cross-encoder classification graphs expose these tensors.
var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"logits"}
)

// ONNXScorer runs a cross-encoder ONNX model locally. Weights and tokenizer
// are fetched from the HuggingFace hub into the configured cache directory on
// first load; later loads hit the cache.
type ONNXScorer struct {
	tk        *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	dev       device.Device
	maxLength int
	batchSize int

	// Session runs are serialized: one scoring call occupies the device.
	mu sync.Mutex
}

// NewONNXScorer downloads (or reuses) the model identified by cfg.Model and
// opens an inference session on dev.
func NewONNXScorer(cfg Config, dev device.Device) (*ONNXScorer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if err := device.EnsureORT(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	repo := hub.New(cfg.Model)
	if cfg.CacheDir != "" {
		repo = repo.WithCacheDir(cfg.CacheDir)
	}

	modelPath, err := downloadModel(repo, cfg.UseFP16)
	if err != nil {
		return nil, fmt.Errorf("fetch model %s: %w", cfg.Model, err)
	}

	tokenizerPath, err := repo.DownloadFile("tokenizer.json")
	if err != nil {
		return nil, fmt.Errorf("fetch tokenizer for %s: %w", cfg.Model, err)
	}
	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: cfg.MaxLength,
		Strategy:  tokenizer.LongestFirst,
	})

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if dev.Accelerated() {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("create CUDA provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := cudaOpts.Update(map[string]string{
			"device_id": strconv.Itoa(dev.Index),
		}); err != nil {
			return nil, fmt.Errorf("bind CUDA device %d: %w", dev.Index, err)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("enable CUDA execution provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create inference session: %w", err)
	}

	return &ONNXScorer{
		tk:        tk,
		session:   session,
		dev:       dev,
		maxLength: cfg.MaxLength,
		batchSize: cfg.BatchSize,
	}, nil
}

// downloadModel fetches the ONNX graph, preferring the reduced-precision
// export when requested. Repos differ in where they keep the export, so a
// few well-known locations are tried in order.
func downloadModel(repo *hub.Repo, useFP16 bool) (string, error) {
	candidates := []string{"onnx/model.onnx", "model.onnx"}
	if useFP16 {
		candidates = append([]string{"onnx/model_fp16.onnx", "model_fp16.onnx"}, candidates...)
	}

	var lastErr error
	for _, name := range candidates {
		path, err := repo.DownloadFile(name)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// Score tokenizes one (query, document) pair per document and runs the
// cross-encoder over them in batches, returning the raw relevance logits in
// input order.
func (s *ONNXScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("scorer is closed")
	}

	scores := make([]float64, 0, len(documents))
	for start := 0; start < len(documents); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.batchSize, len(documents))
		batchScores, err := s.scoreBatch(query, documents[start:end])
		if err != nil {
			return nil, fmt.Errorf("score batch %d-%d: %w", start, end, err)
		}
		scores = append(scores, batchScores...)
	}
	return scores, nil
}

func (s *ONNXScorer) scoreBatch(query string, documents []string) ([]float64, error) {
	encodings := make([]*tokenizer.Encoding, len(documents))
	seqLen := 0
	for i, doc := range documents {
		input := tokenizer.NewDualEncodeInput(
			tokenizer.NewInputSequence(query),
			tokenizer.NewInputSequence(doc),
		)
		enc, err := s.tk.Encode(input, true)
		if err != nil {
			return nil, fmt.Errorf("tokenize pair %d: %w", i, err)
		}
		encodings[i] = enc
		if len(enc.Ids) > seqLen {
			seqLen = len(enc.Ids)
		}
	}

	// Pad every row to the longest sequence in the batch.
	n := len(encodings)
	ids := make([]int64, n*seqLen)
	mask := make([]int64, n*seqLen)
	typeIDs := make([]int64, n*seqLen)
	for row, enc := range encodings {
		base := row * seqLen
		for col, id := range enc.Ids {
			ids[base+col] = int64(id)
			mask[base+col] = int64(enc.AttentionMask[col])
			typeIDs[base+col] = int64(enc.TypeIds[col])
		}
	}

	shape := ort.NewShape(int64(n), int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected logits tensor type %T", outputs[0])
	}
	data := logits.GetData()
	if len(data) == 0 || len(data)%n != 0 {
		return nil, fmt.Errorf("unexpected logits length %d for %d documents", len(data), n)
	}

	// Sequence-classification rerankers emit one logit per pair; if the
	// graph emits a [relevant, irrelevant] pair, the first column is the
	// relevance logit.
	cols := len(data) / n
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = float64(data[i*cols])
	}
	return scores, nil
}

// Device returns the device the session is bound to.
func (s *ONNXScorer) Device() device.Device {
	return s.dev
}

// Close destroys the inference session. Safe to call more than once.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
