package parser

import (
	"sort"
	"strconv"
	"strings"
)

// Chapter ids are numeric strings, possibly fractional ("10.5"). Some sites
// occasionally emit non-numeric ids (specials, extras); those sort after all
// numeric ids, ordered among themselves by their raw string. One rule for
// every site, so queue processing order never depends on the source.

// ChapterIDValue parses a chapter id as a fractional-aware number.
// The second return is false for non-numeric ids.
func ChapterIDValue(id string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(id), ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CompareChapterIDs orders two chapter ids: numerically when both parse,
// numeric before non-numeric, lexically between non-numeric ids.
func CompareChapterIDs(a, b string) int {
	av, aok := ChapterIDValue(a)
	bv, bok := ChapterIDValue(b)

	switch {
	case aok && bok:
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortByChapterID stably sorts items ascending by the chapter id that the
// given accessor returns.
func SortByChapterID[T any](items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return CompareChapterIDs(id(items[i]), id(items[j])) < 0
	})
}
