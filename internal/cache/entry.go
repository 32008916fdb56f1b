package cache

import "time"

// Entry is the index record of a cached document
type Entry struct {
	// DocumentID is the stable identifier of the document
	DocumentID string `json:"document_id"`

	// Route is the logical path of the document
	Route string `json:"route"`

	// Hash is the content hash of the resolved query set
	// and the name of the artifact file
	Hash string `json:"hash"`

	// QueryIDs lists the query ids in document order
	QueryIDs []string `json:"query_ids"`

	// ErrorCount is the number of queries that failed to compile
	ErrorCount int `json:"error_count"`

	// Timestamp when this entry was written
	Timestamp time.Time `json:"timestamp"`
}

// DocumentRef identifies the document a query set belongs to
type DocumentRef struct {
	ID    string
	Route string
}

// Status describes what Update did
type Status int

const (
	// StatusRemoved means the document has no queries and its entry was dropped
	StatusRemoved Status = iota

	// StatusHit means an artifact with the same hash already existed
	StatusHit

	// StatusStored means a new artifact was written
	StatusStored
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "cached"
	case StatusStored:
		return "stored"
	default:
		return "removed"
	}
}

// Result is the outcome of Update
type Result struct {
	// IDs are the query ids of the document, in order
	IDs []string

	// Hash is the content hash, empty when removed
	Hash string

	Status Status
}

// Stats summarizes the cache contents
type Stats struct {
	Documents int
	Artifacts int
	Bytes     int64
}
