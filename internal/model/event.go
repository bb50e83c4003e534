// Package model defines the core event and correlation data types.
package model

import "time"

// Event is a normalized change or incident record. Both kinds share the
// same shape; which one an Event is comes from the sequence it arrived in.
type Event struct {
	AccountID string    `json:"account_id"`
	ServiceID string    `json:"service_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// PartitionKey scopes correlation to a single account+service pair.
// Events in different partitions never match.
type PartitionKey struct {
	AccountID string
	ServiceID string
}

// Partition returns the event's partition key.
func (e Event) Partition() PartitionKey {
	return PartitionKey{AccountID: e.AccountID, ServiceID: e.ServiceID}
}

// PairSeparator joins incident and change titles in composite keys.
// It is not expected to occur inside titles.
const PairSeparator = " ||| "

// Pair is a distinct (incident title, change title) combination.
type Pair struct {
	IncidentTitle string
	ChangeTitle   string
}

// Key returns the composite output/cache key for the pair.
func (p Pair) Key() string {
	return p.IncidentTitle + PairSeparator + p.ChangeTitle
}

// Label is a classifier verdict.
type Label string

// Labels for the noise pass (titles) and the causality pass (pairs).
const (
	LabelMeaningful Label = "MEANINGFUL"
	LabelNoise      Label = "NOISE"
	LabelCausal     Label = "CAUSAL"
	LabelNotCausal  Label = "NOT_CAUSAL"
)
