// Package memory implements the per-agent MemoryManager (§4.3): a
// conversation log, an embedding-backed associative store, and a
// non-persistent scratch area, each serialized independently.
package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

// EntryType classifies a MemoryEntry (§3).
type EntryType string

const (
	TypeConversation EntryType = "conversation"
	TypeFact         EntryType = "fact"
	TypeProcedure    EntryType = "procedure"
	TypeContext      EntryType = "context"
	TypeGeneral      EntryType = "general"
)

// Entry is the MemoryEntry record from §3. Embedding is nil until the
// VectorMemory's embedding provider has produced one for it.
type Entry struct {
	ID         string
	Content    string
	Type       EntryType
	Metadata   map[string]string
	CreatedAt  time.Time
	AccessedAt time.Time
	UpdatedAt  time.Time
	AccessCount int
	Embedding  []float64
}

// Clone returns a deep copy of the entry, safe to hand to a caller without
// aliasing the store's internal state.
func (e Entry) Clone() Entry {
	cp := e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.Embedding != nil {
		cp.Embedding = append([]float64(nil), e.Embedding...)
	}
	return cp
}

// Query is the MemoryQuery filter set accepted by VectorMemory.Search (§4.3).
type Query struct {
	Text        string
	Type        EntryType
	Metadata    map[string]string
	Since       time.Time
	Until       time.Time
	MaxResults  int
}

// matches reports whether e satisfies every filter set on q. Zero-value
// filters (empty Text, empty Type, zero times) are treated as "don't care".
func (q Query) matches(e Entry) bool {
	if q.Text != "" && !strings.Contains(strings.ToLower(e.Content), strings.ToLower(q.Text)) {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	for k, v := range q.Metadata {
		if e.Metadata[k] != v {
			return false
		}
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.CreatedAt.After(q.Until) {
		return false
	}
	return true
}

// scored pairs an entry with a similarity score for ranking.
type scored struct {
	entry Entry
	score float64
}

// sortBySimilarity orders entries by descending score, breaking ties by
// descending AccessCount then descending UpdatedAt, per §4.3.
func sortBySimilarity(items []scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		if items[i].entry.AccessCount != items[j].entry.AccessCount {
			return items[i].entry.AccessCount > items[j].entry.AccessCount
		}
		return items[i].entry.UpdatedAt.After(items[j].entry.UpdatedAt)
	})
}

// entryToValue converts a stored Entry to the AgentData representation
// returned across the function/API boundary.
func entryToValue(e Entry) agentdata.Value {
	meta := make(agentdata.Data, len(e.Metadata))
	for k, v := range e.Metadata {
		meta[k] = agentdata.String(v)
	}
	return agentdata.Object(agentdata.Data{
		"id":           agentdata.String(e.ID),
		"content":      agentdata.String(e.Content),
		"type":         agentdata.String(string(e.Type)),
		"metadata":     agentdata.Object(meta),
		"access_count": agentdata.Int(int64(e.AccessCount)),
	})
}
