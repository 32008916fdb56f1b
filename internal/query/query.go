package query

import (
	"fmt"
	"regexp"
)

// DefaultID is the id given to a query block without a label
const DefaultID = "untitled"

// Compiler error messages. A failed query carries the message both as its
// CompileError and as its CompiledBody.
const (
	errorPrefix = "Compiler error: "

	MissingReferenceMessage  = errorPrefix + "missing query reference"
	CircularReferenceMessage = errorPrefix + "circular reference"
)

// Query represents a named query extracted from a document
type Query struct {
	// ID is the block label, DefaultID if the block had none
	ID string `json:"id"`

	// CompiledBody is the body with every reference substituted,
	// or the error message if resolution failed
	CompiledBody string `json:"compiledQueryString"`

	// InputBody is the body as written
	InputBody string `json:"inputQueryString"`

	// Compiled is set once a reference was found in the body
	Compiled bool `json:"compiled"`

	// CompileError is set when a reference could not be resolved
	CompileError string `json:"compileError,omitempty"`
}

// New creates an unresolved query
func New(id, body string) Query {
	if id == "" {
		id = DefaultID
	}

	return Query{
		ID:           id,
		CompiledBody: body,
		InputBody:    body,
	}
}

// Failed reports whether the query has a compile error
func (q *Query) Failed() bool {
	return q.CompileError != ""
}

// Fail records a compile error on the query
func (q *Query) Fail(msg string) {
	q.CompileError = msg
	q.CompiledBody = msg
}

// UndefinedReferenceMessage returns the error for a reference to an id that
// is not defined in the same document
func UndefinedReferenceMessage(id string) string {
	if id == "" {
		return MissingReferenceMessage
	}

	return fmt.Sprintf("%s'%s' is not a query on this page", errorPrefix, id)
}

// ErrorKind classifies a compile error
type ErrorKind int

const (
	NoError ErrorKind = iota
	UndefinedReference
	CircularReference
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedReference:
		return "undefined reference"
	case CircularReference:
		return "circular reference"
	default:
		return "none"
	}
}

// Kind returns the classification of the query's compile error
func (q *Query) Kind() ErrorKind {
	switch {
	case q.CompileError == "":
		return NoError
	case q.CompileError == CircularReferenceMessage:
		return CircularReference
	default:
		return UndefinedReference
	}
}

// IDs returns the ids of queries in order
func IDs(queries []Query) []string {
	ids := make([]string, 0, len(queries))
	for _, q := range queries {
		ids = append(ids, q.ID)
	}

	return ids
}

// CountErrors returns the number of failed queries
func CountErrors(queries []Query) int {
	n := 0
	for i := range queries {
		if queries[i].Failed() {
			n++
		}
	}

	return n
}

var bindablePattern = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

// IsBindable reports whether id can be used as a bare identifier downstream
func IsBindable(id string) bool {
	return bindablePattern.MatchString(id)
}

// BindableIDs filters ids down to those usable as bare identifiers
func BindableIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if IsBindable(id) {
			out = append(out, id)
		}
	}

	return out
}
