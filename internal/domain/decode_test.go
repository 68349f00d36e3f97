package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGoals = map[string]int64{
	"Fitness":  11,
	"Leetcode": 12,
	"Studying": 13,
}

func anchorTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2024, time.July, 2, 18, 30, 45, 0, time.UTC)
}

func TestDecodeSubmissionTable_WellFormed(t *testing.T) {
	anchor := anchorTime(t)

	items := DecodeSubmissionTable("0, Fitness, 30\n-1, Leetcode, true", testGoals, anchor)
	require.Len(t, items, 2)

	assert.Equal(t, "Fitness", items[0].Category)
	assert.Equal(t, int64(11), items[0].GoalID)
	require.NotNil(t, items[0].Value)
	assert.Equal(t, int64(30), *items[0].Value)
	assert.Equal(t, anchor, items[0].SubmissionTime)

	assert.Equal(t, "Leetcode", items[1].Category)
	assert.Equal(t, int64(12), items[1].GoalID)
	assert.Nil(t, items[1].Value)
	yesterday := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, yesterday, items[1].SubmissionTime)
}

func TestDecodeSubmissionTable_StripsCodeFence(t *testing.T) {
	raw := "```csv\n0, Fitness, 30\n```"
	items := DecodeSubmissionTable(raw, testGoals, anchorTime(t))
	require.Len(t, items, 1)
	assert.Equal(t, "Fitness", items[0].Category)
}

func TestDecodeSubmissionTable_SkipsHeader(t *testing.T) {
	raw := "day shift, category, value\n0, Fitness, 30"
	items := DecodeSubmissionTable(raw, testGoals, anchorTime(t))
	require.Len(t, items, 1)
	assert.Equal(t, "Fitness", items[0].Category)
}

func TestDecodeSubmissionTable_DropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"wrong field count", "0, Fitness"},
		{"too many fields", "0, Fitness, 30, extra"},
		{"old day shift", "-2, Fitness, 30"},
		{"future day shift", "1, Fitness, 30"},
		{"garbage day shift", "yesterday, Fitness, 30"},
		{"unknown category", "0, Swimming, 30"},
		{"empty value", "0, Fitness, "},
		{"explicit miss", "0, Fitness, false"},
		{"negative amount", "0, Fitness, -10"},
		{"free text", "I did 30 minutes of fitness today"},
		{"blank", "\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DecodeSubmissionTable(tt.raw, testGoals, anchorTime(t)))
		})
	}
}

func TestDecodeSubmissionTable_PermissiveValueFallback(t *testing.T) {
	items := DecodeSubmissionTable("0, Fitness, a lot", testGoals, anchorTime(t))
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Value)
}

func TestDecodeSubmissionTable_MixedInput(t *testing.T) {
	raw := "category, category, value\n" +
		"0, Fitness, 30\n" +
		"broken line\n" +
		"-1, Studying, 60\n" +
		"-3, Leetcode, 5\n" +
		"0, Unknown, 10"

	items := DecodeSubmissionTable(raw, testGoals, anchorTime(t))
	require.Len(t, items, 2)
	assert.Equal(t, "Fitness", items[0].Category)
	assert.Equal(t, "Studying", items[1].Category)
}

func TestDecodeSubmissionTable_Idempotent(t *testing.T) {
	raw := "0, Fitness, 30\n-1, Leetcode, true\n0, Studying, abc"
	first := DecodeSubmissionTable(raw, testGoals, anchorTime(t))
	second := DecodeSubmissionTable(raw, testGoals, anchorTime(t))
	assert.Equal(t, first, second)
}

func TestDecodeSubmissionTable_YesterdayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	anchor := time.Date(2024, time.July, 2, 1, 15, 0, 0, loc)

	items := DecodeSubmissionTable("-1, Fitness, 30", testGoals, anchor)
	require.Len(t, items, 1)
	want := time.Date(2024, time.July, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, want, items[0].SubmissionTime)
}
