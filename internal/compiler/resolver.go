// Package compiler resolves references between the queries of a document.
//
// A query body may embed ${id} to splice in the compiled body of another
// query defined in the same document. Resolution is textual: every pass
// substitutes each reference with the referenced query's current body in
// parentheses, until no references remain or the iteration bound is hit.
// References still present on the last pass are reported as circular.
package compiler

import (
	"regexp"
	"strings"

	"github.com/Norgate-AV/mdq/internal/query"
)

const (
	// DefaultMaxIterations is the pass bound after which remaining
	// references are treated as circular
	DefaultMaxIterations = 100

	// DefaultMaxBodyLength bounds the size of a compiled body. Cyclic
	// references grow exponentially; once a substitution would exceed the
	// bound it is skipped until the iteration bound marks it circular.
	DefaultMaxBodyLength = 4 << 20
)

var referencePattern = regexp.MustCompile(`\$\{.*?\}`)

// Resolver substitutes query references
type Resolver struct {
	MaxIterations int
	MaxBodyLength int
}

// Report summarizes a resolution run
type Report struct {
	// Passes is the number of passes executed
	Passes int

	// Errors is the number of queries that failed to compile
	Errors int
}

// NewResolver creates a resolver with the default bounds
func NewResolver() *Resolver {
	return &Resolver{
		MaxIterations: DefaultMaxIterations,
		MaxBodyLength: DefaultMaxBodyLength,
	}
}

// Resolve compiles queries in place
func (r *Resolver) Resolve(queries []query.Query) Report {
	maxIterations := r.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	maxBodyLength := r.MaxBodyLength
	if maxBodyLength <= 0 {
		maxBodyLength = DefaultMaxBodyLength
	}

	known := make(map[string]int, len(queries))
	for i := range queries {
		if _, ok := known[queries[i].ID]; !ok {
			known[queries[i].ID] = i
		}
	}

	// refs[i] holds the references of queries[i], rescanned only when its
	// body changed
	refs := make([][]string, len(queries))
	stale := make([]bool, len(queries))
	for i := range stale {
		stale[i] = true
	}

	var report Report
	for pass := 0; pass <= maxIterations; pass++ {
		report.Passes++

		found := false
		for i := range queries {
			q := &queries[i]

			if stale[i] {
				refs[i] = References(q.CompiledBody)
				stale[i] = false
			}

			if len(refs[i]) == 0 {
				continue
			}

			found = true
			q.Compiled = true

			for _, ref := range refs[i] {
				id := ReferencedID(ref)

				target, ok := known[id]
				switch {
				case !ok:
					q.Fail(query.UndefinedReferenceMessage(id))
					stale[i] = true
				case pass == maxIterations:
					q.Fail(query.CircularReferenceMessage)
					stale[i] = true
				default:
					body := queries[target].CompiledBody

					// Oversized substitutions are left in place; the reference
					// is then reported as circular on the last pass.
					if len(q.CompiledBody)-len(ref)+len(body)+2 > maxBodyLength {
						continue
					}

					at := strings.Index(q.CompiledBody, ref)
					if at < 0 {
						continue
					}

					q.CompiledBody = q.CompiledBody[:at] + "(" + body + ")" + q.CompiledBody[at+len(ref):]
					stale[i] = true
				}
			}
		}

		if !found {
			break
		}
	}

	report.Errors = query.CountErrors(queries)
	return report
}

// Resolve compiles queries in place with the default bounds
func Resolve(queries []query.Query) Report {
	return NewResolver().Resolve(queries)
}

// References returns every reference token in body, in order
func References(body string) []string {
	return referencePattern.FindAllString(body, -1)
}

// ReferencedID returns the query id named by a reference token
func ReferencedID(ref string) string {
	ref = strings.TrimPrefix(ref, "${")
	ref = strings.TrimSuffix(ref, "}")

	return strings.TrimSpace(ref)
}
