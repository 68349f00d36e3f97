package domain

import (
	"strings"
	"time"
)

// ParsedSubmissionItem is one validated record decoded from the
// text-understanding service's tabular output. Value is nil when the
// goal was completed but no magnitude was given.
type ParsedSubmissionItem struct {
	Category       string
	GoalID         int64
	Value          *int64
	SubmissionTime time.Time
}

// DecodeSubmissionTable parses the raw tabular text returned by the
// text-understanding service: one "day-shift, category, value" triple
// per line. goalByCategory maps a category display name to the user's
// goal id in that category; anchor is the originating message time.
//
// The input is untrusted model output, so decoding is total: malformed
// lines, unknown day shifts, unresolved categories, empty values and
// explicit misses are silently dropped, never raised.
func DecodeSubmissionTable(raw string, goalByCategory map[string]int64, anchor time.Time) []ParsedSubmissionItem {
	raw = strings.TrimSpace(strings.Trim(raw, "`\n"))

	var items []ParsedSubmissionItem
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		if item, ok := decodeLine(fields, goalByCategory, anchor); ok {
			items = append(items, item)
		}
	}
	return items
}

func decodeLine(fields []string, goalByCategory map[string]int64, anchor time.Time) (ParsedSubmissionItem, bool) {
	category := strings.TrimSpace(fields[1])
	if category == "category" {
		// header row, if the model emitted one
		return ParsedSubmissionItem{}, false
	}
	if strings.TrimSpace(fields[2]) == "" {
		return ParsedSubmissionItem{}, false
	}

	var submissionTime time.Time
	switch strings.TrimSpace(fields[0]) {
	case "0":
		submissionTime = anchor
	case "-1":
		y := anchor.AddDate(0, 0, -1)
		submissionTime = time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, y.Location())
	default:
		// only same-day and previous-day records are accepted; older
		// corrections would allow unbounded backdating
		return ParsedSubmissionItem{}, false
	}

	goalID, ok := goalByCategory[category]
	if !ok {
		// the user has no active goal in this category; never fabricate
		// a goal reference
		return ParsedSubmissionItem{}, false
	}

	kind, n := ParseValue(fields[2])
	if kind == ValueNotCompleted {
		return ParsedSubmissionItem{}, false
	}

	item := ParsedSubmissionItem{
		Category:       category,
		GoalID:         goalID,
		SubmissionTime: submissionTime,
	}
	if kind == ValueNumber {
		item.Value = &n
	}
	return item, true
}
