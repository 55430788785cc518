// internal/workers/keydates/find-key-dates/models.go
package findkeydates

import "datedriven/internal/keydates"

type Input struct {
	ItemID  string `json:"itemId"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Context string `json:"context,omitempty"`
	BatchID string `json:"batchId,omitempty"`
}

type Output struct {
	ItemID         string                        `json:"itemId"`
	Subject        string                        `json:"subject"`
	KeyDates       []keydates.RankedDate         `json:"keyDates"`
	SourceErrors   map[string]keydates.ErrorKind `json:"sourceErrors"`
	CandidateCount int                           `json:"candidateCount"`
	HasDates       bool                          `json:"hasDates"`
	Persisted      bool                          `json:"persisted"`
}
