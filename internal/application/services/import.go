package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/habitkeeper/core/internal/domain/entities"
)

// ImportDocument replaces the whole document with the habits in payload.
// payload must be a JSON object with a "habits" array; each record is
// coerced field by field with the same defaults as CreateHabit.
func (s *HabitService) ImportDocument(ctx context.Context, payload []byte) (int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil || top == nil {
		return 0, fmt.Errorf("%w: import must be a JSON object containing a \"habits\" array", entities.ErrValidation)
	}

	rawHabits := bytes.TrimSpace(top["habits"])
	if len(rawHabits) == 0 || rawHabits[0] != '[' {
		return 0, fmt.Errorf("%w: import must contain a \"habits\" array", entities.ErrValidation)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(rawHabits, &records); err != nil {
		return 0, fmt.Errorf("%w: decode habits: %w", entities.ErrValidation, err)
	}

	completions := map[string]json.RawMessage{}
	if raw, ok := top["completions"]; ok {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err == nil && m != nil {
			completions = m
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc := entities.NewHabitDocument(now)
	doc.Completions = completions

	taken := make(map[int64]struct{}, len(records))
	for _, raw := range records {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			fields = map[string]any{}
		}

		habit := coerceHabit(fields, now)
		if _, dup := taken[habit.ID]; habit.ID == 0 || dup {
			habit.ID = s.uniqueID(doc, taken)
		}
		taken[habit.ID] = struct{}{}
		doc.Habits = append(doc.Habits, habit)
	}

	if err := s.store.Save(ctx, doc); err != nil {
		return 0, persistenceError("failed to save imported data", err)
	}

	s.logger.Infow("Habit document imported", "habits", len(doc.Habits), "completions", len(doc.Completions))
	return len(doc.Habits), nil
}

// coerceHabit builds a habit from a loosely typed record. A zero ID means
// the record carried no usable id and one must be generated.
func coerceHabit(fields map[string]any, now time.Time) entities.Habit {
	streak := leadingInt(fields["streak"])
	if streak < 0 {
		streak = 0
	}

	return entities.Habit{
		ID:             coerceID(fields["id"]),
		Name:           coerceText(fields["name"], entities.UnnamedHabit),
		Description:    coerceText(fields["description"], ""),
		Frequency:      coerceText(fields["frequency"], entities.DefaultFrequency),
		Time:           coerceText(fields["time"], entities.DefaultTime),
		CompletedToday: truthy(fields["completedToday"]),
		Streak:         streak,
		CreatedAt:      coerceTime(fields["createdAt"], now),
	}
}

func coerceID(v any) int64 {
	var id int64
	switch raw := v.(type) {
	case float64:
		if raw != math.Trunc(raw) || raw > 1<<53 {
			return 0
		}
		id = int64(raw)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0
		}
		id = n
	}
	if id <= 0 {
		return 0
	}
	return id
}

// coerceText keeps non-empty strings and renders other truthy scalars as text.
func coerceText(v any, def string) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		if t != 0 && !math.IsNaN(t) {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	case bool:
		if t {
			return "true"
		}
	}
	return def
}

// truthy follows JSON-value truthiness: false, 0, "" and null are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

// leadingInt reads an integer the way a lenient parser does: numbers are
// truncated, strings contribute their leading sign and digits, anything else is 0.
func leadingInt(v any) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		if t < math.MinInt32 {
			return math.MinInt32
		}
		return int(t)
	case string:
		s := strings.TrimLeft(t, " \t\n\r")
		end := 0
		if end < len(s) && (s[end] == '-' || s[end] == '+') {
			end++
		}
		digits := end
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == digits {
			return 0
		}
		n, err := strconv.ParseInt(s[:end], 10, 32)
		if err != nil {
			if s[0] == '-' {
				return math.MinInt32
			}
			return math.MaxInt32
		}
		return int(n)
	}
	return 0
}

// coerceTime accepts RFC 3339 strings, plain dates and epoch milliseconds.
func coerceTime(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	case float64:
		if t > 0 && t == math.Trunc(t) {
			return time.UnixMilli(int64(t)).UTC()
		}
	}
	return now
}
