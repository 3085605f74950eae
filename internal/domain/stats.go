package domain

import (
	"time"
)

// AccuracyBucket is hit-rate over a set of resolved predictions.
type AccuracyBucket struct {
	Accuracy float64 `json:"accuracy"` // 0-1 over resolved records
	Samples  int     `json:"samples"`  // resolved record count
}

// PredictionStats aggregates historical prediction accuracy for one
// symbol over the most recent bounded window. It feeds the credibility
// engine's prior, closing the adaptive loop.
type PredictionStats struct {
	Symbol      string                       `json:"symbol"`
	SampleSize  int                          `json:"sample_size"` // resolved records in window
	Pending     int                          `json:"pending"`
	Accuracy    float64                      `json:"accuracy"` // overall hit rate
	ByEdgeLabel map[EdgeLabel]AccuracyBucket `json:"by_edge_label"`
	ByStrategy  map[string]AccuracyBucket    `json:"by_strategy"`
	// LastOutcomes is the most recent outcome sequence, newest first,
	// at most 10 entries.
	LastOutcomes []Outcome `json:"last_outcomes"`
	GeneratedAt  time.Time `json:"generated_at"`
}
