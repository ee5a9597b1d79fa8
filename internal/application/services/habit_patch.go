package services

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/habitkeeper/core/internal/domain/entities"
)

// habitPatch carries the allow-listed fields of an update request.
// A nil field was absent from the request and leaves the habit untouched.
type habitPatch struct {
	Name           *string
	Description    *string
	Frequency      *string
	Time           *string
	CompletedToday *bool
	Streak         *int
}

// parseHabitPatch picks the allow-listed keys out of fields and checks their types.
// Unknown keys and null values are ignored. Nothing is applied when any field is invalid.
func parseHabitPatch(fields map[string]any) (*habitPatch, error) {
	p := &habitPatch{}

	for _, key := range []string{"name", "description", "frequency", "time"} {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", entities.ErrValidation, key)
		}
		switch key {
		case "name":
			if str == "" {
				return nil, fmt.Errorf("%w: name cannot be empty", entities.ErrValidation)
			}
			p.Name = &str
		case "description":
			p.Description = &str
		case "frequency":
			p.Frequency = &str
		case "time":
			p.Time = &str
		}
	}

	if raw, ok := fields["completedToday"]; ok && raw != nil {
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: completedToday must be a boolean", entities.ErrValidation)
		}
		p.CompletedToday = &b
	}

	if raw, ok := fields["streak"]; ok && raw != nil {
		n, ok := wholeNumber(raw)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: streak must be a non-negative integer", entities.ErrValidation)
		}
		p.Streak = &n
	}

	return p, nil
}

func (p *habitPatch) apply(h *entities.Habit) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Frequency != nil {
		h.Frequency = *p.Frequency
	}
	if p.Time != nil {
		h.Time = *p.Time
	}
	if p.CompletedToday != nil {
		h.CompletedToday = *p.CompletedToday
	}
	if p.Streak != nil {
		h.Streak = *p.Streak
	}
}

func (p *habitPatch) fieldNames() []string {
	var names []string
	if p.Name != nil {
		names = append(names, "name")
	}
	if p.Description != nil {
		names = append(names, "description")
	}
	if p.Frequency != nil {
		names = append(names, "frequency")
	}
	if p.Time != nil {
		names = append(names, "time")
	}
	if p.CompletedToday != nil {
		names = append(names, "completedToday")
	}
	if p.Streak != nil {
		names = append(names, "streak")
	}
	return names
}

// wholeNumber accepts the numeric shapes a decoded JSON value can take
// and reports whether it is an integral value that fits an int32.
func wholeNumber(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return wholeNumber(i)
	}
	return 0, false
}
