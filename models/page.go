package models

import (
	"encoding/json"
	"fmt"
)

// Projection is a field-filtered view of an entity, keyed by its JSON field names.
type Projection map[string]any

// Page is the result of every paginated query: the total number of matches and one
// page of projected items.
type Page struct {
	Total int          `json:"total"`
	Items []Projection `json:"items"`
}

// Project converts v to its JSON field map and keeps only the listed fields.
// The id field is always kept. An empty field list keeps everything.
func Project(v any, fields []string) (Projection, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	if len(fields) == 0 {
		return Projection(all), nil
	}
	out := make(Projection, len(fields)+1)
	if id, ok := all["id"]; ok {
		out["id"] = id
	}
	for _, f := range fields {
		if val, ok := all[f]; ok {
			out[f] = val
		}
	}
	return out, nil
}

// ProjectAll projects every item of a slice.
func ProjectAll[T any](items []T, fields []string) ([]Projection, error) {
	out := make([]Projection, 0, len(items))
	for i := range items {
		p, err := Project(items[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ID returns the projected id as a string, or "" when absent.
func (p Projection) ID() string {
	s, _ := p["id"].(string)
	return s
}
