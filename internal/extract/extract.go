// Package extract scans markdown documents for fenced code blocks and
// separates display code from named queries.
//
// Only fenced blocks are considered. Indented code blocks are ambiguous with
// indented prose and are never yielded, so they can never become queries.
package extract

import (
	"bytes"
	"iter"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Norgate-AV/mdq/internal/languages"
	"github.com/Norgate-AV/mdq/internal/query"
)

// Block is a fenced code block found in a document
type Block struct {
	// Label is the first word of the info string, empty if none
	Label string

	// Body is the raw block content
	Body string
}

// Blocks returns the fenced blocks of source in document order. The
// sequence re-parses source every time it is ranged over.
func Blocks(source []byte) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		doc := goldmark.DefaultParser().Parse(text.NewReader(source))

		_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}

			fenced, ok := n.(*ast.FencedCodeBlock)
			if !ok {
				return ast.WalkContinue, nil
			}

			block := Block{
				Label: string(fenced.Language(source)),
				Body:  blockBody(fenced, source),
			}
			if !yield(block) {
				return ast.WalkStop, nil
			}

			return ast.WalkSkipChildren, nil
		})
	}
}

func blockBody(n *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer

	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}

	return buf.String()
}

// Classifier splits fenced blocks into display code and named queries
type Classifier struct {
	Languages *languages.Set
}

// NewClassifier creates a classifier for the given display languages.
// A nil set falls back to languages.Default().
func NewClassifier(langs *languages.Set) *Classifier {
	if langs == nil {
		langs = languages.Default()
	}

	return &Classifier{Languages: langs}
}

// Classify returns the named queries of a document in document order
func (c *Classifier) Classify(source []byte) []query.Query {
	return c.ClassifyBlocks(Blocks(source))
}

// ClassifyBlocks returns a query for every block whose label is not a
// display language
func (c *Classifier) ClassifyBlocks(blocks iter.Seq[Block]) []query.Query {
	var queries []query.Query

	for b := range blocks {
		if !c.IsQuery(b) {
			continue
		}

		queries = append(queries, query.New(b.Label, strings.TrimSpace(b.Body)))
	}

	return queries
}

// IsQuery reports whether b is a named query rather than display code
func (c *Classifier) IsQuery(b Block) bool {
	label := b.Label
	if label == "" {
		label = query.DefaultID
	}

	return !c.Languages.Has(label)
}
