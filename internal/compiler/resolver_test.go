package compiler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/mdq/internal/query"
)

func queries(pairs ...string) []query.Query {
	out := make([]query.Query, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, query.New(pairs[i], pairs[i+1]))
	}

	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		input []query.Query
		want  []query.Query
	}{
		{
			name:  "no references",
			input: queries("a", "select 1"),
			want: []query.Query{
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
			},
		},
		{
			name:  "single reference is parenthesized",
			input: queries("a", "select 1", "b", "select * from (${a}) t"),
			want: []query.Query{
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
				{ID: "b", InputBody: "select * from (${a}) t", CompiledBody: "select * from ((select 1)) t", Compiled: true},
			},
		},
		{
			name:  "chain declared in reverse order",
			input: queries("c", "select * from ${b}", "b", "select * from ${a}", "a", "select 1"),
			want: []query.Query{
				{ID: "c", InputBody: "select * from ${b}", CompiledBody: "select * from (select * from (select 1))", Compiled: true},
				{ID: "b", InputBody: "select * from ${a}", CompiledBody: "select * from (select 1)", Compiled: true},
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
			},
		},
		{
			name:  "repeated reference",
			input: queries("a", "1", "b", "${a} + ${a}"),
			want: []query.Query{
				{ID: "a", InputBody: "1", CompiledBody: "1"},
				{ID: "b", InputBody: "${a} + ${a}", CompiledBody: "(1) + (1)", Compiled: true},
			},
		},
		{
			name:  "whitespace inside reference",
			input: queries("a", "select 1", "b", "${  a }"),
			want: []query.Query{
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
				{ID: "b", InputBody: "${  a }", CompiledBody: "(select 1)", Compiled: true},
			},
		},
		{
			name:  "undefined reference",
			input: queries("a", "${missing}"),
			want: []query.Query{
				{
					ID:           "a",
					InputBody:    "${missing}",
					CompiledBody: "Compiler error: 'missing' is not a query on this page",
					Compiled:     true,
					CompileError: "Compiler error: 'missing' is not a query on this page",
				},
			},
		},
		{
			name:  "empty reference",
			input: queries("a", "select ${ }"),
			want: []query.Query{
				{
					ID:           "a",
					InputBody:    "select ${ }",
					CompiledBody: query.MissingReferenceMessage,
					Compiled:     true,
					CompileError: query.MissingReferenceMessage,
				},
			},
		},
		{
			name:  "failure does not block siblings",
			input: queries("a", "select 1", "b", "${a} union ${nope}", "c", "select * from ${a}"),
			want: []query.Query{
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
				{
					ID:           "b",
					InputBody:    "${a} union ${nope}",
					CompiledBody: query.UndefinedReferenceMessage("nope"),
					Compiled:     true,
					CompileError: query.UndefinedReferenceMessage("nope"),
				},
				{ID: "c", InputBody: "select * from ${a}", CompiledBody: "select * from (select 1)", Compiled: true},
			},
		},
		{
			name:  "reference to failed query splices the error",
			input: queries("a", "${nope}", "b", "select * from ${a}"),
			want: []query.Query{
				{
					ID:           "a",
					InputBody:    "${nope}",
					CompiledBody: query.UndefinedReferenceMessage("nope"),
					Compiled:     true,
					CompileError: query.UndefinedReferenceMessage("nope"),
				},
				{
					ID:           "b",
					InputBody:    "select * from ${a}",
					CompiledBody: "select * from (" + query.UndefinedReferenceMessage("nope") + ")",
					Compiled:     true,
				},
			},
		},
		{
			name:  "duplicate ids use the first definition",
			input: queries("a", "select 1", "a", "select 2", "b", "${a}"),
			want: []query.Query{
				{ID: "a", InputBody: "select 1", CompiledBody: "select 1"},
				{ID: "a", InputBody: "select 2", CompiledBody: "select 2"},
				{ID: "b", InputBody: "${a}", CompiledBody: "(select 1)", Compiled: true},
			},
		},
		{
			name:  "literal substitution",
			input: queries("a", "select '$&' as x", "b", "${a}"),
			want: []query.Query{
				{ID: "a", InputBody: "select '$&' as x", CompiledBody: "select '$&' as x"},
				{ID: "b", InputBody: "${a}", CompiledBody: "(select '$&' as x)", Compiled: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Resolve(tt.input)

			if diff := cmp.Diff(tt.want, tt.input); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}

			for _, q := range tt.input {
				if q.Failed() {
					assert.Equal(t, q.CompileError, q.CompiledBody)
				} else {
					assert.Empty(t, References(q.CompiledBody), "query %s should be fully resolved", q.ID)
				}
			}
		})
	}
}

func TestResolve_CircularReference(t *testing.T) {
	input := queries("a", "${b}", "b", "${a}", "c", "select 1")

	report := Resolve(input)

	for _, q := range input[:2] {
		assert.Equal(t, query.CircularReferenceMessage, q.CompileError)
		assert.Equal(t, query.CircularReferenceMessage, q.CompiledBody)
		assert.True(t, q.Compiled)
		assert.Equal(t, query.CircularReference, q.Kind())
	}

	assert.False(t, input[2].Failed())
	assert.Equal(t, DefaultMaxIterations+1, report.Passes)
	assert.Equal(t, 2, report.Errors)
}

func TestResolve_CircularDetectedOnlyAtBound(t *testing.T) {
	for _, bound := range []int{1, 2, 7, 25} {
		input := queries("a", "${b}", "b", "${a}")

		r := &Resolver{MaxIterations: bound}
		report := r.Resolve(input)

		assert.Equal(t, bound+1, report.Passes, "bound %d", bound)
		assert.Equal(t, query.CircularReferenceMessage, input[0].CompileError, "bound %d", bound)
		assert.Equal(t, query.CircularReferenceMessage, input[1].CompileError, "bound %d", bound)
	}
}

func TestResolve_SelfReference(t *testing.T) {
	input := queries("a", "select * from ${a}")

	report := (&Resolver{MaxIterations: 10}).Resolve(input)

	assert.Equal(t, 11, report.Passes)
	assert.Equal(t, query.CircularReferenceMessage, input[0].CompileError)
}

func TestResolve_DeepChainWithinBound(t *testing.T) {
	// q0 -> q1 -> ... -> q9 -> base
	var input []query.Query
	for i := 0; i < 10; i++ {
		input = append(input, query.New(id(i), "${"+id(i+1)+"}"))
	}
	input = append(input, query.New(id(10), "select 1"))

	report := (&Resolver{MaxIterations: 20}).Resolve(input)

	require.Zero(t, report.Errors)
	assert.Equal(t, strings.Repeat("(", 10)+"select 1"+strings.Repeat(")", 10), input[0].CompiledBody)
}

func TestResolve_BodyLengthBound(t *testing.T) {
	tests := []struct {
		name  string
		input []query.Query
	}{
		{
			name:  "self duplicating",
			input: queries("a", "${a} ${a}", "b", "select 1"),
		},
		{
			name:  "mutual",
			input: queries("a", "${b}", "b", "${a}", "b2", "select 1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{MaxIterations: 100, MaxBodyLength: 4096}
			report := r.Resolve(tt.input)

			last := tt.input[len(tt.input)-1]
			assert.False(t, last.Failed())

			for _, q := range tt.input[:len(tt.input)-1] {
				assert.Equal(t, query.CircularReferenceMessage, q.CompileError, "query %s", q.ID)
			}

			assert.Equal(t, 101, report.Passes, "cycles are only reported at the iteration bound")
		})
	}
}

func TestResolve_DependsOnCycle(t *testing.T) {
	input := queries("a", "${b}", "b", "${a}", "c", "select * from ${a}", "d", "select 1")

	report := (&Resolver{MaxIterations: 30, MaxBodyLength: 256}).Resolve(input)

	for _, q := range input[:3] {
		assert.Equal(t, query.CircularReferenceMessage, q.CompileError, "query %s", q.ID)
	}

	assert.False(t, input[3].Failed())
	assert.Equal(t, 31, report.Passes)
	assert.Equal(t, 3, report.Errors)
}

func TestResolve_Empty(t *testing.T) {
	report := Resolve(nil)

	assert.Equal(t, 1, report.Passes)
	assert.Zero(t, report.Errors)
}

func TestResolve_InputBodyUnchanged(t *testing.T) {
	input := queries("a", "select 1", "b", "${a}", "c", "${zzz}")
	before := make([]string, len(input))
	for i, q := range input {
		before[i] = q.InputBody
	}

	Resolve(input)

	for i, q := range input {
		assert.Equal(t, before[i], q.InputBody)
	}
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"${a}", "${ b }"}, References("select ${a} join ${ b } on 1"))
	assert.Equal(t, []string{"${a ${b}"}, References("${a ${b}"))
	assert.Empty(t, References("select '$' || '{x}'"))
	assert.Empty(t, References("${a\n}"))
}

func TestReferencedID(t *testing.T) {
	assert.Equal(t, "a", ReferencedID("${a}"))
	assert.Equal(t, "orders", ReferencedID("${ orders\t}"))
	assert.Equal(t, "", ReferencedID("${}"))
}

func id(i int) string {
	return "q" + string(rune('a'+i))
}
