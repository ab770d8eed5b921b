// Package knowledge provides the knowledge_search capability: retrieval of
// reference snippets from a pluggable store. The bundled Index is a
// tokenized keyword scorer suitable for embedded corpora; production
// deployments can swap in a vector store behind the same interface.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/printmind/printmind/capability"
)

// Snippet is one retrieved piece of reference material.
type Snippet struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// Store retrieves reference snippets relevant to a query.
type Store interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Document is raw material ingested into the Index.
type Document struct {
	ID      string
	Title   string
	Content string
	Source  string
}

// Index is an in-memory keyword store. Scoring is the fraction of query
// tokens present in the document, with a small boost for title hits.
// Results below minScore are dropped so irrelevant corpora return nothing
// rather than noise. Safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	docs     []indexedDoc
	minScore float64
}

type indexedDoc struct {
	doc         Document
	tokens      map[string]bool
	titleTokens map[string]bool
}

// NewIndex creates an empty index with the default relevance floor.
func NewIndex() *Index {
	return &Index{minScore: 0.3}
}

// Add ingests one document.
func (idx *Index) Add(doc Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = append(idx.docs, indexedDoc{
		doc:         doc,
		tokens:      tokenize(doc.Content),
		titleTokens: tokenize(doc.Title),
	})
}

// AddAll ingests a batch of documents.
func (idx *Index) AddAll(docs []Document) {
	for _, d := range docs {
		idx.Add(d)
	}
}

// Len returns the number of ingested documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search implements Store.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var snippets []Snippet
	for _, d := range idx.docs {
		score := overlap(queryTokens, d.tokens)
		if titleScore := overlap(queryTokens, d.titleTokens); titleScore > 0 {
			score += 0.25 * titleScore
			if score > 1 {
				score = 1
			}
		}
		if score < idx.minScore {
			continue
		}
		snippets = append(snippets, Snippet{
			ID:      d.doc.ID,
			Title:   d.doc.Title,
			Content: d.doc.Content,
			Source:  d.doc.Source,
			Score:   score,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if len(snippets) > topK {
		snippets = snippets[:topK]
	}
	return snippets, nil
}

// overlap returns the fraction of query tokens found in the document.
func overlap(query map[string]bool, doc map[string]bool) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if doc[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(field, ".,;:!?()[]{}\"'")
		if len(tok) < 2 {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

// SearchResult is the capability's structured output.
type SearchResult struct {
	Query    string    `json:"query"`
	Snippets []Snippet `json:"snippets"`
	Found    int       `json:"found"`
}

// NewSearchCapability exposes the store as the knowledge_search capability.
func NewSearchCapability(store Store) capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query over the printing knowledge base",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": "Maximum number of snippets to return (default 5)",
			},
		},
		"required": []string{"query"},
	}

	return capability.NewFunc(
		"knowledge_search",
		"Search the 3D printing knowledge base for reference material about materials, slicing, calibration and troubleshooting.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, fmt.Errorf("query must not be empty")
			}

			topK := 5
			if raw, ok := args["top_k"].(float64); ok && raw > 0 {
				topK = int(raw)
			}

			snippets, err := store.Search(ctx, query, topK)
			if err != nil {
				return nil, fmt.Errorf("knowledge search failed: %w", err)
			}

			return SearchResult{Query: query, Snippets: snippets, Found: len(snippets)}, nil
		},
	)
}
