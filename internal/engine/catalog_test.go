package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogPresets(t *testing.T) {
	models := Catalog()
	require.Len(t, models, 6)

	seen := map[string]bool{}
	for _, m := range models {
		require.NotEmpty(t, m.Name)
		require.NotEmpty(t, m.DisplayName)
		require.Positive(t, m.SizeBytes)
		require.True(t, strings.HasPrefix(m.SourceURL, "https://huggingface.co/"), m.SourceURL)
		require.False(t, seen[m.Name], "duplicate model name %s", m.Name)
		seen[m.Name] = true
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Name = "mutated"
	require.NotEqual(t, "mutated", Catalog()[0].Name)
}
