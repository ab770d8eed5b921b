package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededIndex() *Index {
	idx := NewIndex()
	idx.AddAll([]Document{
		{
			ID:      "pla-temp",
			Title:   "PLA temperature settings",
			Content: "PLA prints best between 190 and 215 degrees nozzle temperature with a bed around 50.",
			Source:  "materials.md",
		},
		{
			ID:      "stringing",
			Title:   "Fixing stringing",
			Content: "Stringing is usually caused by too high nozzle temperature or insufficient retraction distance.",
			Source:  "troubleshooting.md",
		},
		{
			ID:      "belt",
			Title:   "Belt tensioning",
			Content: "Loose belts cause layer shifts and ringing artifacts on vertical surfaces.",
			Source:  "maintenance.md",
		},
	})
	return idx
}

func TestIndexSearchRanksRelevantFirst(t *testing.T) {
	idx := seededIndex()

	snippets, err := idx.Search(context.Background(), "stringing retraction nozzle temperature", 5)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "stringing", snippets[0].ID)
	assert.Greater(t, snippets[0].Score, 0.3)
}

func TestIndexSearchFiltersIrrelevant(t *testing.T) {
	idx := seededIndex()

	snippets, err := idx.Search(context.Background(), "quantum chromodynamics lattice", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestIndexSearchRespectsTopK(t *testing.T) {
	idx := seededIndex()

	snippets, err := idx.Search(context.Background(), "temperature nozzle", 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(snippets), 1)
}

func TestSearchCapability(t *testing.T) {
	c := NewSearchCapability(seededIndex())

	assert.Equal(t, "knowledge_search", c.Name())

	out, err := c.Call(context.Background(), map[string]any{"query": "layer shifts belts"})
	require.NoError(t, err)

	result, ok := out.(SearchResult)
	require.True(t, ok)
	assert.Equal(t, result.Found, len(result.Snippets))
	require.NotEmpty(t, result.Snippets)
	assert.Equal(t, "belt", result.Snippets[0].ID)
}

func TestSearchCapabilityRejectsEmptyQuery(t *testing.T) {
	c := NewSearchCapability(seededIndex())

	_, err := c.Call(context.Background(), map[string]any{"query": "   "})
	require.Error(t, err)
}
