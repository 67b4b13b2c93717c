// Package embed produces unit-norm 768-dim embeddings from text, using a
// task-prefix convention and an LRU cache keyed by prefix+text.
package embed

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/maypok86/otter"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
	"github.com/retrievalfabric/core/internal/fabric/tensor"
)

// Dimension is fixed at 768 per the spec's binding decision (see
// SPEC_FULL.md §9 Open Questions): any 384-dim path is out of scope.
const Dimension = 768

// Task biases the embedding toward a retrieval role via a fixed string
// prefix prepended to the input text before tokenization.
type Task string

const (
	SearchDocument  Task = "search_document"
	SearchQuery     Task = "search_query"
	CodeDefinition  Task = "code_definition"
	CodeSearch      Task = "code_search"
	Classification  Task = "classification"
	Clustering      Task = "clustering"
)

func (t Task) prefix() string {
	return string(t) + ": "
}

// Model is the minimal inference surface the Embedder drives. A production
// model reads its weights through the C6 streaming tensor loader; Model
// hides that behind a single method so the cache/locking/prefix machinery
// here is independent of how vectors are actually produced.
type Model interface {
	// Infer returns a raw (not yet normalized) embedding for the prefixed
	// text. Implementations must be deterministic for a given input within
	// one process lifetime.
	Infer(prefixedText string) ([]float32, error)
}

// Stats mirrors the original implementation's EmbedderStats: richer than
// the bare hit/miss counters the distilled spec names, since nothing in
// SPEC_FULL.md's Non-goals excludes it (see SPEC_FULL.md §1C).
type Stats struct {
	TotalEmbeddings      uint64
	CacheHits            uint64
	CacheMisses          uint64
	BatchOperations      uint64
	TotalTokensProcessed uint64
}

func (s Stats) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Embedder is safe for concurrent use. The model context and the cache are
// guarded by separate locks so a cache read never blocks behind an
// in-flight inference call, mirroring the original's parking_lot mutex
// split between context and cache.
type Embedder struct {
	modelMu sync.Mutex
	model   Model

	cache    otter.Cache[string, [Dimension]float32]
	capacity int

	totalEmbeddings      atomic.Uint64
	cacheHits            atomic.Uint64
	cacheMisses          atomic.Uint64
	batchOperations      atomic.Uint64
	totalTokensProcessed atomic.Uint64
}

// New creates an Embedder backed by model with an LRU cache of the given
// capacity (default 2000 when capacity <= 0).
func New(model Model, capacity int) (*Embedder, error) {
	if capacity <= 0 {
		capacity = 2000
	}
	cache, err := otter.MustBuilder[string, [Dimension]float32](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fabricerr.Wrap(fabricerr.Configuration, "failed to build embedder cache", err)
	}
	return &Embedder{model: model, cache: cache, capacity: capacity}, nil
}

func cacheKey(task Task, text string) string {
	return string(task) + "|" + text
}

// Embed returns the unit-norm embedding for text under task, consulting the
// cache first.
func (e *Embedder) Embed(text string, task Task) ([Dimension]float32, error) {
	key := cacheKey(task, text)
	if v, ok := e.cache.Get(key); ok {
		e.cacheHits.Add(1)
		return v, nil
	}
	e.cacheMisses.Add(1)

	vec, err := e.infer(text, task)
	if err != nil {
		return [Dimension]float32{}, err
	}

	e.cache.Set(key, vec)
	e.totalEmbeddings.Add(1)
	return vec, nil
}

func (e *Embedder) infer(text string, task Task) ([Dimension]float32, error) {
	prefixed := task.prefix() + text
	e.totalTokensProcessed.Add(uint64(len(prefixed) / 4))

	e.modelMu.Lock()
	raw, err := e.model.Infer(prefixed)
	e.modelMu.Unlock()
	if err != nil {
		return [Dimension]float32{}, fabricerr.Wrap(fabricerr.Embedding, "model inference failed", err)
	}
	if len(raw) != Dimension {
		return [Dimension]float32{}, fabricerr.New(fabricerr.Embedding,
			fmt.Sprintf("model returned %d dims, want %d", len(raw), Dimension))
	}

	var out [Dimension]float32
	copy(out[:], raw)
	normalize(&out)
	return out, nil
}

// normalize L2-normalizes v in place. Per spec, a norm below 1e-8 yields the
// zero vector rather than dividing by a near-zero denominator (which would
// produce NaN/Inf — forbidden everywhere in this system).
func normalize(v *[Dimension]float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-8 {
		for i := range v {
			v[i] = 0
		}
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// EmbedBatch consults the cache for each text first, then runs uncached
// items through the model in fixed-size mini-batches.
func (e *Embedder) EmbedBatch(texts []string, task Task, batchSize int) ([][Dimension]float32, error) {
	if batchSize <= 0 {
		batchSize = 16
	}
	e.batchOperations.Add(1)

	out := make([][Dimension]float32, len(texts))
	var uncachedIdx []int

	for i, text := range texts {
		key := cacheKey(task, text)
		if v, ok := e.cache.Get(key); ok {
			e.cacheHits.Add(1)
			out[i] = v
			continue
		}
		e.cacheMisses.Add(1)
		uncachedIdx = append(uncachedIdx, i)
	}

	for start := 0; start < len(uncachedIdx); start += batchSize {
		end := start + batchSize
		if end > len(uncachedIdx) {
			end = len(uncachedIdx)
		}
		for _, idx := range uncachedIdx[start:end] {
			vec, err := e.infer(texts[idx], task)
			if err != nil {
				return nil, err
			}
			out[idx] = vec
			e.cache.Set(cacheKey(task, texts[idx]), vec)
			e.totalEmbeddings.Add(1)
		}
	}

	return out, nil
}

// Stats returns a snapshot of embedder-level counters.
func (e *Embedder) Stats() Stats {
	return Stats{
		TotalEmbeddings:      e.totalEmbeddings.Load(),
		CacheHits:            e.cacheHits.Load(),
		CacheMisses:          e.cacheMisses.Load(),
		BatchOperations:      e.batchOperations.Load(),
		TotalTokensProcessed: e.totalTokensProcessed.Load(),
	}
}

// CacheInfo returns (len, cap) of the LRU cache.
func (e *Embedder) CacheInfo() (int, int) {
	return e.cache.Size(), e.capacity
}

// ClearCache empties the embedding cache.
func (e *Embedder) ClearCache() {
	e.cache.Clear()
}

// Cosine computes cosine similarity between two equal-length vectors.
func Cosine(a, b [Dimension]float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TensorBackedModel adapts a C6 streaming tensor loader plus a caller
// supplied projection function into a Model, so the embedder never has to
// know about block quantization directly.
type TensorBackedModel struct {
	Monitor *tensor.MemoryMonitor
	// Project turns a tokenized/prefixed text plus a decoded weight stream
	// into a Dimension-length raw vector. Kept abstract here: the matmul/
	// layer-norm compute graph over decoded tensor windows is an
	// implementation detail of the concrete model file, not of the
	// retrieval fabric's embedding contract.
	Project func(prefixedText string, monitor *tensor.MemoryMonitor) ([]float32, error)
}

func (m *TensorBackedModel) Infer(prefixedText string) ([]float32, error) {
	if m.Project == nil {
		return nil, fabricerr.New(fabricerr.Embedding, "tensor-backed model has no projection configured")
	}
	return m.Project(prefixedText, m.Monitor)
}
