package entities

import (
	"encoding/json"
	"errors"
	"time"
)

// Common errors
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("habit not found")
	ErrPersistence = errors.New("persistence failure")
)

// DocumentVersion is the schema tag written into every persisted document.
const DocumentVersion = "1.0"

// Habit defaults applied on create and import
const (
	DefaultFrequency = "daily"
	DefaultTime      = "anytime"
	UnnamedHabit     = "Unnamed habit"
)

// SuccessWindow is the streak length that counts as a fully successful habit in Stats.
const SuccessWindow = 30

// Habit represents one tracked habit
type Habit struct {
	ID             int64     `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description" yaml:"description"`
	Frequency      string    `json:"frequency" yaml:"frequency"`
	Time           string    `json:"time" yaml:"time"`
	CompletedToday bool      `json:"completedToday" yaml:"completedToday"`
	Streak         int       `json:"streak" yaml:"streak"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
}

// Toggle flips the completion flag and moves the streak with it.
// The streak never drops below zero.
func (h *Habit) Toggle() {
	h.CompletedToday = !h.CompletedToday
	if h.CompletedToday {
		h.Streak++
		return
	}
	if h.Streak > 0 {
		h.Streak--
	}
}

// HabitDocument is the whole persisted state
type HabitDocument struct {
	Habits      []Habit                    `json:"habits"`
	Completions map[string]json.RawMessage `json:"completions"`
	LastUpdated time.Time                  `json:"lastUpdated"`
	Version     string                     `json:"version"`
}

// NewHabitDocument returns an empty document stamped with now.
func NewHabitDocument(now time.Time) *HabitDocument {
	return &HabitDocument{
		Habits:      []Habit{},
		Completions: map[string]json.RawMessage{},
		LastUpdated: now,
		Version:     DocumentVersion,
	}
}

// Normalize replaces nil collections and a missing version tag so the
// document always serializes with the expected shape. Negative streaks
// from hand-edited files are clamped to zero.
func (d *HabitDocument) Normalize() {
	for i := range d.Habits {
		if d.Habits[i].Streak < 0 {
			d.Habits[i].Streak = 0
		}
	}
	if d.Habits == nil {
		d.Habits = []Habit{}
	}
	if d.Completions == nil {
		d.Completions = map[string]json.RawMessage{}
	}
	if d.Version == "" {
		d.Version = DocumentVersion
	}
}

// IndexOf returns the position of the habit with id, or -1.
func (d *HabitDocument) IndexOf(id int64) int {
	for i := range d.Habits {
		if d.Habits[i].ID == id {
			return i
		}
	}
	return -1
}

// HasID reports whether a habit with id exists in the document.
func (d *HabitDocument) HasID(id int64) bool {
	return d.IndexOf(id) >= 0
}

// Clone returns a deep copy of the document.
func (d *HabitDocument) Clone() *HabitDocument {
	out := &HabitDocument{
		Habits:      make([]Habit, len(d.Habits)),
		Completions: make(map[string]json.RawMessage, len(d.Completions)),
		LastUpdated: d.LastUpdated,
		Version:     d.Version,
	}
	copy(out.Habits, d.Habits)
	for k, v := range d.Completions {
		raw := make(json.RawMessage, len(v))
		copy(raw, v)
		out.Completions[k] = raw
	}
	return out
}

// Stats holds the figures derived from a document
type Stats struct {
	TotalHabits    int       `json:"totalHabits"`
	CompletedToday int       `json:"completedToday"`
	TotalStreak    int       `json:"totalStreak"`
	SuccessRate    int       `json:"successRate"`
	LastUpdated    time.Time `json:"lastUpdated"`
}
