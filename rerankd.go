// Package rerankd implements a lifecycle-managed cross-encoder reranking
// service: a lazily created singleton model handle bound to a resolved
// compute device, and a Rank operation that scores documents against a
// question and returns the best matches.
package rerankd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rerankd/rerankd/pkg/config"
	"github.com/rerankd/rerankd/pkg/device"
	"github.com/rerankd/rerankd/pkg/scorer"
)

// RankedDocument pairs a document with its relevance score. Instances are
// produced by Rank and never mutated afterwards.
type RankedDocument struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// Handle is the loaded, ready-to-use model instance together with the device
// it is bound to. Callers borrow it for the duration of one scoring call.
type Handle struct {
	Scorer scorer.Scorer
	Device device.Device
	FP16   bool
}

// ScorerFactory builds the scoring backend for a resolved device. Swappable
// so tests can run without a model.
type ScorerFactory func(dev device.Device) (scorer.Scorer, error)

// Status is a read-only snapshot of the service for the health endpoint.
type Status struct {
	Loaded    bool
	Model     string
	Device    *device.Device
	FP16      bool
	Inventory device.Inventory
}

// Service owns the process-wide model handle. At most one handle exists at a
// time; the slot is the only mutable shared state and every access goes
// through the mutex, so concurrent first requests trigger exactly one load.
type Service struct {
	cfg     *config.Config
	runtime device.Runtime
	factory ScorerFactory
	logger  *slog.Logger

	mu     sync.Mutex
	handle *Handle
}

// New creates a Service. runtime may be nil for CPU-only operation; factory
// defaults to the provider configured in cfg.
func New(cfg *config.Config, rt device.Runtime, factory ScorerFactory, logger *slog.Logger) *Service {
	if rt == nil {
		rt = device.NoopRuntime{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = func(dev device.Device) (scorer.Scorer, error) {
			return scorer.New(scorer.Config{
				Provider:    scorer.Provider(cfg.Model.Provider),
				Model:       cfg.Model.Name,
				CacheDir:    cfg.Model.CacheDir,
				UseFP16:     cfg.Model.UseFP16,
				MaxLength:   cfg.Model.MaxLength,
				BatchSize:   cfg.Model.BatchSize,
				LibraryPath: cfg.Model.LibraryPath,
				BaseURL:     cfg.Remote.BaseURL,
				APIKey:      cfg.Remote.APIKey,
				Timeout:     cfg.Remote.Timeout,
			}, dev)
		}
	}
	return &Service{
		cfg:     cfg,
		runtime: rt,
		factory: factory,
		logger:  logger,
	}
}

// Handle returns the model handle, creating it on first use. The first call
// may block for a long time while weights load from cache or a remote fetch;
// on failure the slot stays empty so the next call retries from scratch.
func (s *Service) Handle() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.handle, nil
	}

	dev := device.Resolve(s.runtime, s.cfg.Model.DeviceIndex)
	start := time.Now()
	s.logger.Info("loading model",
		"model", s.cfg.Model.Name,
		"device", dev.String(),
		"fp16", s.cfg.Model.UseFP16,
	)

	sc, err := s.factory(dev)
	if err != nil {
		return nil, fmt.Errorf("load model %s on %s: %w", s.cfg.Model.Name, dev, err)
	}

	s.handle = &Handle{
		Scorer: sc,
		Device: dev,
		FP16:   s.cfg.Model.UseFP16,
	}
	s.logger.Info("model loaded",
		"model", s.cfg.Model.Name,
		"device", dev.String(),
		"duration", time.Since(start),
	)
	return s.handle, nil
}

// Unload drops the model handle and reclaims memory. Idempotent; reclamation
// is best effort and failures are logged, never returned.
func (s *Service) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}

	dev := s.handle.Device
	if err := s.handle.Scorer.Close(); err != nil {
		s.logger.Warn("error closing scorer during unload", "error", err)
	}
	s.handle = nil

	if dev.Accelerated() {
		if err := s.runtime.ReleaseCache(dev.Index); err != nil {
			s.logger.Warn("error releasing accelerator cache", "device", dev.String(), "error", err)
		}
	}
	device.GC()

	s.logger.Info("model unloaded", "device", dev.String())
}

// Loaded reports whether a model handle currently exists. Never triggers a
// load.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Status returns a snapshot of the service state and device inventory.
func (s *Service) Status() Status {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	st := Status{
		Model:     s.cfg.Model.Name,
		Inventory: device.Snapshot(s.runtime),
	}
	if handle != nil {
		st.Loaded = true
		dev := handle.Device
		st.Device = &dev
		st.FP16 = handle.FP16
	}
	return st
}

// Rank scores every document against the question and returns the topK best
// with the elapsed wall time. Documents with equal scores keep their input
// order. Callers validate that documents is non-empty and that topK is
// already clamped to len(documents).
//
// Whenever an accelerator is in use, cache reclamation is requested before
// returning, on the failure path too, so steady-state device memory does not
// grow request over request. Reclamation never masks a scoring error.
func (s *Service) Rank(ctx context.Context, question string, documents []string, topK int) ([]RankedDocument, time.Duration, error) {
	start := time.Now()

	handle, err := s.Handle()
	if err != nil {
		return nil, 0, err
	}

	if handle.Device.Accelerated() {
		defer func() {
			if err := s.runtime.ReleaseCache(handle.Device.Index); err != nil {
				s.logger.Warn("error releasing accelerator cache",
					"device", handle.Device.String(), "error", err)
			}
		}()
	}

	scores, err := handle.Scorer.Score(ctx, question, documents)
	if err != nil {
		return nil, 0, fmt.Errorf("score documents: %w", err)
	}
	if len(scores) != len(documents) {
		return nil, 0, fmt.Errorf("scorer returned %d scores for %d documents", len(scores), len(documents))
	}

	ranked := make([]RankedDocument, len(documents))
	for i, doc := range documents {
		ranked[i] = RankedDocument{Document: doc, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}

	elapsed := time.Since(start)
	s.logger.Debug("ranked documents",
		"documents", len(documents),
		"top_k", topK,
		"duration", elapsed,
	)
	return ranked, elapsed, nil
}

// Close unloads the model. Implements the usual service shutdown contract.
func (s *Service) Close() error {
	s.Unload()
	return nil
}
