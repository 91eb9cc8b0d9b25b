package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolosalai/agentruntime/internal/embedding"
)

// VectorMemory is the embedding-backed associative store from §4.3: each
// stored entry gets a vector from the injected embedding.Provider, and
// SemanticSearch ranks by cosine similarity over those vectors.
type VectorMemory struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	provider  embedding.Provider
}

// NewVectorMemory creates a vector store using provider to embed stored
// content. provider must not be nil.
func NewVectorMemory(provider embedding.Provider) *VectorMemory {
	return &VectorMemory{
		entries:  make(map[string]Entry),
		provider: provider,
	}
}

// Store embeds and persists content under a freshly generated id, returning
// the id. entryType and metadata are recorded as given.
func (v *VectorMemory) Store(ctx context.Context, content string, entryType EntryType, metadata map[string]string) (string, error) {
	vec, err := v.provider.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("memory: embedding content: %w", err)
	}

	now := time.Now()
	id := uuid.NewString()
	entry := Entry{
		ID:          id,
		Content:     content,
		Type:        entryType,
		Metadata:    metadata,
		CreatedAt:   now,
		AccessedAt:  now,
		UpdatedAt:   now,
		AccessCount: 0,
		Embedding:   vec,
	}

	v.mu.Lock()
	v.entries[id] = entry
	v.mu.Unlock()
	return id, nil
}

// Get returns the entry by id, bumping its access bookkeeping (§4.3).
func (v *VectorMemory) Get(id string) (Entry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[id]
	if !ok {
		return Entry{}, false
	}
	e.AccessCount++
	e.AccessedAt = time.Now()
	v.entries[id] = e
	return e.Clone(), true
}

// Search returns every entry matching q's filters, access-bumped, in no
// particular order (callers wanting ranking should use SemanticSearch).
func (v *VectorMemory) Search(q Query) []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []Entry
	now := time.Now()
	for id, e := range v.entries {
		if !q.matches(e) {
			continue
		}
		e.AccessCount++
		e.AccessedAt = now
		v.entries[id] = e
		out = append(out, e.Clone())
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out
}

// SemanticSearch embeds text and returns the top-k entries ranked by cosine
// similarity, descending, ties broken by access_count then updated_at (§4.3).
// Every returned entry is access-bumped, matching Get/Search semantics.
func (v *VectorMemory) SemanticSearch(ctx context.Context, text string, k int) ([]Entry, error) {
	queryVec, err := v.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("memory: embedding query: %w", err)
	}
	if k <= 0 {
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	items := make([]scored, 0, len(v.entries))
	for _, e := range v.entries {
		items = append(items, scored{entry: e, score: embedding.CosineSimilarity(queryVec, e.Embedding)})
	}
	sortBySimilarity(items)

	if k > len(items) {
		k = len(items)
	}

	now := time.Now()
	out := make([]Entry, k)
	for i := 0; i < k; i++ {
		e := items[i].entry
		e.AccessCount++
		e.AccessedAt = now
		v.entries[e.ID] = e
		out[i] = e.Clone()
	}
	return out, nil
}

// Cleanup removes entries older than maxAge that have been accessed fewer
// than 5 times, never reclaiming frequently used entries (§4.3). Returns
// the number of entries removed.
func (v *VectorMemory) Cleanup(maxAge time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, e := range v.entries {
		if e.CreatedAt.Before(cutoff) && e.AccessCount < 5 {
			delete(v.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the current number of stored entries.
func (v *VectorMemory) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// snapshot returns a deep copy of every entry, used by Manager.Serialize.
func (v *VectorMemory) snapshot() []Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Entry, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, e.Clone())
	}
	return out
}

// restore replaces the store's contents with entries, used by Manager.Deserialize.
func (v *VectorMemory) restore(entries []Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		v.entries[e.ID] = e
	}
}
