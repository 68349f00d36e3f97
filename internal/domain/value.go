package domain

import (
	"strconv"
	"strings"
)

// ValueKind classifies one value token from the model's tabular output.
type ValueKind int

const (
	// ValueUnknown means the goal was completed but no magnitude was
	// given (or the token could not be understood; the model's output is
	// not fully trusted, so unparseable tokens degrade to this).
	ValueUnknown ValueKind = iota
	// ValueNumber carries a parsed non-negative integer amount.
	ValueNumber
	// ValueNotCompleted means the user reported an explicit miss; the
	// record is dropped and never reaches the ledger.
	ValueNotCompleted
)

// ParseValue normalizes a raw value token. "true" (any case) means
// completed with unknown magnitude, "false" means not completed,
// anything else is parsed as an integer. Parse failures fall back to
// ValueUnknown rather than erroring; negative integers count as a miss
// so that submission amounts stay non-negative.
func ParseValue(raw string) (ValueKind, int64) {
	v := strings.ToLower(strings.TrimSpace(raw))

	switch v {
	case "true":
		return ValueUnknown, 0
	case "false":
		return ValueNotCompleted, 0
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return ValueUnknown, 0
	}
	if n < 0 {
		return ValueNotCompleted, 0
	}
	return ValueNumber, n
}
