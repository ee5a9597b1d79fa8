package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/habitkeeper/core/internal/domain/entities"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// yamlDocument mirrors entities.HabitDocument with decoded completions,
// raw JSON would otherwise be written as a byte sequence.
type yamlDocument struct {
	Habits      []entities.Habit `yaml:"habits"`
	Completions map[string]any   `yaml:"completions"`
	LastUpdated time.Time        `yaml:"lastUpdated"`
	Version     string           `yaml:"version"`
}

func encodeExport(doc *entities.HabitDocument, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case formatJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case formatYAML, "yml":
		out := yamlDocument{
			Habits:      doc.Habits,
			Completions: make(map[string]any, len(doc.Completions)),
			LastUpdated: doc.LastUpdated,
			Version:     doc.Version,
		}
		for key, raw := range doc.Completions {
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, fmt.Errorf("completion %q: %w", key, err)
			}
			out.Completions[key] = value
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
