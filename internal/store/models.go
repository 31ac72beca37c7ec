package store

import (
	"time"

	"github.com/rahul/steptable/internal/table"
)

// Snapshot is a set of records saved from a page so it can be edited and
// filled into another page later.
type Snapshot struct {
	ID        string         `json:"id"`
	PageURL   string         `json:"pageUrl"`
	Title     string         `json:"title,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Records   []table.Record `json:"records"`
}

// Operation is one audited table action.
type Operation struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}
