// Package store persists execution results to an append-only JSONL log and
// reads them back. One line is written per finished execution.
package store

import (
	"time"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// Record is one persisted execution.
type Record struct {
	Time       time.Time     `json:"time"`
	Invocation string        `json:"invocation,omitempty"`
	Job        string        `json:"job,omitempty"`
	Profile    string        `json:"profile,omitempty"`
	Transport  string        `json:"transport,omitempty"`
	Operation  string        `json:"operation,omitempty"`
	Result     claude.Result `json:"result"`
}

// Writer persists records to durable storage.
type Writer interface {
	Append(rec Record) error
	Close() error
}

// Reader retrieves persisted records.
type Reader interface {
	Len() int
	Record(n int) (Record, error)
	Summary() Summary
}

// Store combines Writer and Reader into a single handle.
type Store interface {
	Writer
	Reader
}

// Summary aggregates every record in a log.
type Summary struct {
	Records   int
	Succeeded int
	Failed    int
	TotalCost float64
	First     time.Time
	Last      time.Time
}

// add folds rec into s.
func (s *Summary) add(rec Record) {
	s.Records++
	if rec.Result.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	if rec.Result.CostUSD != nil {
		s.TotalCost += *rec.Result.CostUSD
	}
	if s.First.IsZero() || rec.Time.Before(s.First) {
		s.First = rec.Time
	}
	if rec.Time.After(s.Last) {
		s.Last = rec.Time
	}
}
