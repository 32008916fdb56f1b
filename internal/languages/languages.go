package languages

import (
	"sort"
	"strings"
)

// Known maps highlight language identifiers to their aliases. A fenced block
// labelled with any of these is display code, never a query.
var Known = map[string][]string{
	"markup":     {"html", "xml", "svg", "mathml", "ssml", "atom", "rss"},
	"css":        nil,
	"clike":      nil,
	"javascript": {"js"},
	"typescript": {"ts"},
	"jsx":        nil,
	"tsx":        nil,
	"json":       {"webmanifest"},
	"yaml":       {"yml"},
	"toml":       nil,
	"markdown":   {"md"},
	"bash":       {"shell", "sh"},
	"powershell": nil,
	"python":     {"py"},
	"r":          nil,
	"sql":        nil,
	"go":         nil,
	"rust":       nil,
	"java":       nil,
	"c":          nil,
	"cpp":        nil,
	"csharp":     {"cs", "dotnet"},
	"ruby":       {"rb"},
	"php":        nil,
	"scala":      nil,
	"kotlin":     {"kt", "kts"},
	"swift":      nil,
	"docker":     {"dockerfile"},
	"diff":       nil,
	"ini":        nil,
	"latex":      {"tex", "context"},
	"julia":      nil,
	"matlab":     nil,
	"haskell":    {"hs"},
	"lua":        nil,
	"perl":       nil,
	"graphql":    nil,
	"svelte":     nil,
}

// Set is a case-insensitive set of language labels.
type Set struct {
	labels map[string]struct{}
}

// New creates a set holding the given labels
func New(labels ...string) *Set {
	s := &Set{labels: make(map[string]struct{}, len(labels))}
	s.Add(labels...)

	return s
}

// Default returns a set of every known language and its aliases
func Default() *Set {
	s := New()
	for lang := range Known {
		s.Add(lang)
		s.Add(Aliases(lang)...)
	}

	return s
}

// Add inserts labels into the set, ignoring blanks
func (s *Set) Add(labels ...string) {
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			s.labels[l] = struct{}{}
		}
	}
}

// Has reports whether label is a display language
func (s *Set) Has(label string) bool {
	if s == nil {
		return false
	}

	_, ok := s.labels[strings.ToLower(label)]
	return ok
}

// Len returns the number of labels in the set
func (s *Set) Len() int {
	return len(s.labels)
}

// Labels returns the labels in sorted order
func (s *Set) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}

	sort.Strings(out)
	return out
}

// Aliases returns the aliases of a known language, or nil if it has none
func Aliases(lang string) []string {
	return Known[strings.ToLower(lang)]
}
