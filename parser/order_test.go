package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChapterIDValue(t *testing.T) {
	v, ok := ChapterIDValue("10.5")
	assert.True(t, ok)
	assert.Equal(t, 10.5, v)

	v, ok = ChapterIDValue(" 1,234 ")
	assert.True(t, ok)
	assert.Equal(t, 1234.0, v)

	_, ok = ChapterIDValue("extra")
	assert.False(t, ok)

	_, ok = ChapterIDValue("")
	assert.False(t, ok)
}

func TestCompareChapterIDs(t *testing.T) {
	assert.Equal(t, -1, CompareChapterIDs("2", "10"))
	assert.Equal(t, 1, CompareChapterIDs("10", "2"))
	assert.Equal(t, 0, CompareChapterIDs("10", "10.0"))
	assert.Equal(t, -1, CompareChapterIDs("1.5", "2"))

	// numeric ids sort before non-numeric ones
	assert.Equal(t, -1, CompareChapterIDs("999", "extra"))
	assert.Equal(t, 1, CompareChapterIDs("extra", "1"))

	// non-numeric ids sort lexically among themselves
	assert.Equal(t, -1, CompareChapterIDs("bonus", "extra"))
}

func TestSortByChapterID(t *testing.T) {
	type chapter struct{ id string }

	items := []chapter{{"2"}, {"10"}, {"extra"}, {"1.5"}, {"1"}, {"bonus"}}
	SortByChapterID(items, func(c chapter) string { return c.id })

	got := make([]string, len(items))
	for i, c := range items {
		got[i] = c.id
	}
	assert.Equal(t, []string{"1", "1.5", "2", "10", "bonus", "extra"}, got)
}
