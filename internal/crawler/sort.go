package crawler

import (
	"cmp"
	"slices"
)

// SortByFavorites returns a copy of records ordered by FavoriteCount, highest
// first. Records with equal counts keep their relative order.
func SortByFavorites(records []Record) []Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return cmp.Compare(b.FavoriteCount, a.FavoriteCount)
	})
	return sorted
}

// UniqueIDs drops repeated identifiers, keeping the first occurrence.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
