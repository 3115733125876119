package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortByFavoritesIsStableAndDescending(t *testing.T) {
	t.Parallel()

	in := []Record{
		{ID: "a", FavoriteCount: 1},
		{ID: "b", FavoriteCount: 5},
		{ID: "c", FavoriteCount: 1},
		{ID: "d", FavoriteCount: 5},
		{ID: "e", FavoriteCount: 0},
	}

	out := SortByFavorites(in)

	ids := make([]string, len(out))
	for i, r := range out {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, ids)
	assert.Equal(t, "a", in[0].ID, "input must not be reordered")
}

func TestUniqueIDsKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"x", "y", "z"}, UniqueIDs([]string{"x", "y", "x", "z", "y"}))
	assert.Empty(t, UniqueIDs(nil))
}
