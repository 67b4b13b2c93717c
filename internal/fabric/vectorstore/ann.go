package vectorstore

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// annHit is a single (id, distance) search result, ascending id as tiebreak
// when distances are equal (§4.9's deterministic ordering requirement).
type annHit struct {
	id       string
	distance float64
}

// annIndex wraps coder/hnsw.Graph with a string<->uint64 id mapping,
// mirroring the Aman-CERP-amanmcp HNSWStore pattern: cosine metric,
// lazy deletion (the graph never removes a node, mappings are just
// dropped) to sidestep a known coder/hnsw issue deleting the last node.
type annIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int
	idToKey    map[string]uint64
	keyToID    map[uint64]string
	nextKey    uint64
}

func newAnnIndex(dimensions int) *annIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &annIndex{
		graph:      g,
		dimensions: dimensions,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
	}
}

func (a *annIndex) add(ids []string, vecs [][]float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, id := range ids {
		if oldKey, exists := a.idToKey[id]; exists {
			delete(a.keyToID, oldKey)
		}
		key := a.nextKey
		a.nextKey++
		a.graph.Add(hnsw.MakeNode(key, vecs[i]))
		a.idToKey[id] = key
		a.keyToID[key] = id
	}
}

func (a *annIndex) delete(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range ids {
		if key, exists := a.idToKey[id]; exists {
			delete(a.keyToID, key)
			delete(a.idToKey, id)
		}
	}
}

func (a *annIndex) search(query []float32, limit int) []annHit {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.graph.Len() == 0 {
		return nil
	}

	nodes := a.graph.Search(query, limit)
	hits := make([]annHit, 0, len(nodes))
	for _, n := range nodes {
		id, ok := a.keyToID[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, annHit{id: id, distance: float64(a.graph.Distance(query, n.Value))})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].id < hits[j].id
	})
	return hits
}
