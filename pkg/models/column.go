package models

import "fmt"

// ColumnHit is a single column surfaced by semantic column search,
// carrying enough context for prompt construction.
type ColumnHit struct {
	Table       string  `json:"table"`
	Column      string  `json:"column"`
	DataType    string  `json:"data_type"`
	Description string  `json:"description,omitempty"`
	Statistics  string  `json:"statistics,omitempty"`
	Score       float64 `json:"score"`
}

// Key returns the canonical "table.column" identifier for the hit.
func (h ColumnHit) Key() string {
	return fmt.Sprintf("%s.%s", h.Table, h.Column)
}
