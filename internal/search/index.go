// Package search wraps a bleve full-text index behind a constructor/
// index_session/commit/reload/search/delete_session/stats contract,
// staging writes so commit/reload keep a writer/reader separation even
// though bleve itself flushes each mutation as it happens.
package search

import (
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/fleetcore/fleetcore/internal/fleeterr"
)

// SessionMetadata is one document indexed by IndexSession.
type SessionMetadata struct {
	SessionID   string `json:"session_id"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	Model       string `json:"model,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
}

// SearchResult is one hit returned from Search.
type SearchResult struct {
	SessionID string  `json:"session_id"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	Timestamp int64   `json:"timestamp"`
	Model     string  `json:"model"`
}

// Stats reports the live document count.
type Stats struct {
	DocCount uint64 `json:"docCount"`
}

const snippetLen = 200

// Index is a schema-fixed full-text index over session transcripts,
// keyed by session ID (one document per session; a later IndexSession
// call on the same ID overwrites it at the next Commit).
type Index struct {
	mu      sync.Mutex
	bi      bleve.Index
	pending map[string]*SessionMetadata // nil value = pending delete
}

// New creates the directory if absent and opens or creates a
// memory-mapped inverted index there with the fixed session_id/content/
// timestamp/model/project_path schema.
func New(path string) (*Index, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fleeterr.New(fleeterr.InvalidArg, "search.New", fmt.Errorf("invalid path %q: %w", path, err))
	}

	bi, err := bleve.Open(path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		bi, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fleeterr.New(fleeterr.Internal, "search.New", fmt.Errorf("create index: %w", err))
		}
	case err != nil:
		return nil, fleeterr.New(fleeterr.Internal, "search.New", fmt.Errorf("open index (corruption?): %w", err))
	}

	return &Index{bi: bi, pending: make(map[string]*SessionMetadata)}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	stored := bleve.NewTextFieldMapping()
	stored.Store = true
	stored.Index = false

	content := bleve.NewTextFieldMapping()
	content.Store = true
	content.Index = true

	ts := bleve.NewNumericFieldMapping()
	ts.Store = true
	ts.Index = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("session_id", stored)
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("timestamp", ts)
	doc.AddFieldMappingsAt("model", stored)
	doc.AddFieldMappingsAt("project_path", stored)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = "standard"
	return im
}

// IndexSession stages a document for the next Commit under exclusive
// writer access. Model and ProjectPath are optional.
func (idx *Index) IndexSession(meta SessionMetadata) error {
	if meta.SessionID == "" {
		return fleeterr.New(fleeterr.InvalidArg, "search.IndexSession", fmt.Errorf("session_id is required"))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m := meta
	idx.pending[meta.SessionID] = &m
	return nil
}

// DeleteSession schedules deletion of the document matching session_id,
// taking effect after the next Commit.
func (idx *Index) DeleteSession(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pending[id] = nil
	return nil
}

// Commit flushes every staged index/delete under exclusive writer
// access so subsequent Reload calls observe them.
func (idx *Index) Commit() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	batch := idx.bi.NewBatch()
	for id, meta := range idx.pending {
		if meta == nil {
			batch.Delete(id)
			continue
		}
		if err := batch.Index(id, meta); err != nil {
			return fleeterr.New(fleeterr.Internal, "search.Commit", fmt.Errorf("stage %q: %w", id, err))
		}
	}
	if err := idx.bi.Batch(batch); err != nil {
		return fleeterr.New(fleeterr.Internal, "search.Commit", fmt.Errorf("flush: %w", err))
	}
	idx.pending = make(map[string]*SessionMetadata)
	return nil
}

// Reload forces the reader to pick up the latest committed segments.
// bleve's reader always observes its own store's latest state, so this
// is a no-op kept for API parity with the writer/reader split callers
// expect.
func (idx *Index) Reload() error { return nil }

// Search parses query against the content field (the single-field
// default) and returns up to limit scored hits.
func (idx *Index) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"session_id", "content", "timestamp", "model"}

	res, err := idx.bi.Search(req)
	if err != nil {
		return nil, fleeterr.New(fleeterr.InvalidArg, "search.Search", fmt.Errorf("parse error: %w", err))
	}

	out := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		sessionID, _ := hit.Fields["session_id"].(string)
		model, _ := hit.Fields["model"].(string)
		var ts int64
		if tsf, ok := hit.Fields["timestamp"].(float64); ok {
			ts = int64(tsf)
		}
		out = append(out, SearchResult{
			SessionID: sessionID,
			Score:     hit.Score,
			Snippet:   snippet(content),
			Timestamp: ts,
			Model:     model,
		})
	}
	return out, nil
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	return string(runes[:snippetLen])
}

// Stats returns the live document count.
func (idx *Index) Stats() (Stats, error) {
	count, err := idx.bi.DocCount()
	if err != nil {
		return Stats{}, fleeterr.New(fleeterr.Internal, "search.Stats", fmt.Errorf("doc count: %w", err))
	}
	return Stats{DocCount: count}, nil
}

// Close releases the underlying index's file handles.
func (idx *Index) Close() error {
	return idx.bi.Close()
}
