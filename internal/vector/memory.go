package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryIndex is an in-process vector index using brute-force search.
// Suitable for single-node deployments and tests; contents survive restarts
// through Save/Load.
type MemoryIndex struct {
	dimensions int
	metric     Metric
	entries    []IndexEntry
	byID       map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory index with the given metric and dimension.
func NewMemoryIndex(metric Metric, dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &MemoryIndex{
		dimensions: dimensions,
		metric:     m,
		byID:       make(map[string]int),
	}, nil
}

// Type returns the index backend identifier.
func (m *MemoryIndex) Type() string {
	return string(BackendMemory)
}

// Upsert writes entries, replacing prior entries with the same ID in place so
// their insertion order is preserved. Returns the count written; a dimension
// mismatch stops the batch and reports the prefix that succeeded.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []IndexEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		if len(e.Vector) != m.dimensions {
			return i, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e.Vector), m.dimensions)
		}
		stored := IndexEntry{ID: e.ID, Vector: make([]float32, m.dimensions), Metadata: e.Metadata}
		copy(stored.Vector, e.Vector)
		if pos, ok := m.byID[e.ID]; ok {
			m.entries[pos] = stored
			continue
		}
		m.byID[e.ID] = len(m.entries)
		m.entries = append(m.entries, stored)
	}
	return len(entries), nil
}

// Query returns the top-k entries by the index metric, best first. Equal
// scores keep insertion order, earlier entries winning, so results are
// deterministic.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, topK int) ([]*Match, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(m.entries))
	for i := range m.entries {
		scores[i] = scored{pos: i, score: m.metric.Score(query, m.entries[i].Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	result := make([]*Match, topK)
	for i := 0; i < topK; i++ {
		e := m.entries[scores[i].pos]
		result[i] = &Match{ID: e.ID, Score: scores[i].score, Metadata: e.Metadata}
	}
	return result, nil
}

// Remove deletes entries by ID. Missing IDs are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !removeSet[e.ID] {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.byID = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.byID[e.ID] = i
	}
	return nil
}

// RemoveBySource deletes all entries whose metadata names the given source.
func (m *MemoryIndex) RemoveBySource(ctx context.Context, sourceID string) error {
	m.mu.RLock()
	var ids []string
	for _, e := range m.entries {
		if e.Metadata.SourceID == sourceID {
			ids = append(ids, e.ID)
		}
	}
	m.mu.RUnlock()
	if len(ids) == 0 {
		return nil
	}
	return m.Remove(ctx, ids)
}

// Stats returns the number of stored entries.
func (m *MemoryIndex) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{EntryCount: int64(len(m.entries))}, nil
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (4), n (4), then per entry: idLen (4), id bytes,
// metaLen (4), metadata JSON, vector (dimensions*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range m.entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", e.ID, err)
		}
		for _, blob := range [][]byte{[]byte(e.ID), meta} {
			if err := binary.Write(f, binary.LittleEndian, uint32(len(blob))); err != nil {
				return fmt.Errorf("write length: %w", err)
			}
			if _, err := f.Write(blob); err != nil {
				return fmt.Errorf("write entry: %w", err)
			}
		}
		if _, err := f.Write(float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path, replacing the in-memory contents.
// Dimensions must match. A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]IndexEntry, 0, n)
	m.byID = make(map[string]int, n)
	vecBuf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		meta, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		var entry IndexEntry
		entry.ID = string(id)
		if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata for %s: %w", entry.ID, err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		entry.Vector = bytesToFloat32Slice(vecBuf)
		m.byID[entry.ID] = len(m.entries)
		m.entries = append(m.entries, entry)
	}
	return nil
}

func readBlob(f io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	blob := make([]byte, n)
	if _, err := io.ReadFull(f, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
