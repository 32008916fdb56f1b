package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/Norgate-AV/mdq/internal/languages"
	"github.com/Norgate-AV/mdq/internal/query"
)

const page = "# Sales\n" +
	"\n" +
	"```orders\n" +
	"select * from orders\n" +
	"```\n" +
	"\n" +
	"Some prose.\n" +
	"\n" +
	"    indented_block\n" +
	"    select ${orders}\n" +
	"\n" +
	"```python\n" +
	"print(\"${orders}\")\n" +
	"```\n" +
	"\n" +
	"```\n" +
	"  select 1\n" +
	"```\n" +
	"\n" +
	"```JS\n" +
	"console.log(1)\n" +
	"```\n" +
	"\n" +
	"```by_month {1,3}\n" +
	"select month, count(*)\n" +
	"from ${orders}\n" +
	"group by 1\n" +
	"```\n"

func TestBlocks(t *testing.T) {
	var got []Block
	for b := range Blocks([]byte(page)) {
		got = append(got, b)
	}

	want := []Block{
		{Label: "orders", Body: "select * from orders\n"},
		{Label: "python", Body: "print(\"${orders}\")\n"},
		{Label: "", Body: "  select 1\n"},
		{Label: "JS", Body: "console.log(1)\n"},
		{Label: "by_month", Body: "select month, count(*)\nfrom ${orders}\ngroup by 1\n"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Blocks() mismatch (-want +got):\n%s", diff)
	}
}

func TestBlocks_Restartable(t *testing.T) {
	seq := Blocks([]byte(page))

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}

	assert.Equal(t, 5, count())
	assert.Equal(t, 5, count(), "ranging twice should yield the same blocks")
}

func TestBlocks_StopEarly(t *testing.T) {
	var labels []string
	for b := range Blocks([]byte(page)) {
		labels = append(labels, b.Label)
		if len(labels) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"orders", "python"}, labels)
}

func TestBlocks_IndentedOnly(t *testing.T) {
	source := []byte("Intro\n\n    ```orders\n    select 1\n    ```\n")

	n := 0
	for range Blocks(source) {
		n++
	}

	assert.Zero(t, n, "indented code should never be yielded")
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil)

	got := c.Classify([]byte(page))

	want := []query.Query{
		{ID: "orders", InputBody: "select * from orders", CompiledBody: "select * from orders"},
		{ID: "untitled", InputBody: "select 1", CompiledBody: "select 1"},
		{ID: "by_month", InputBody: "select month, count(*)\nfrom ${orders}\ngroup by 1", CompiledBody: "select month, count(*)\nfrom ${orders}\ngroup by 1"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifier_CustomLanguages(t *testing.T) {
	c := NewClassifier(languages.New("orders"))

	got := c.Classify([]byte(page))

	assert.Equal(t, []string{"python", "untitled", "JS", "by_month"}, query.IDs(got))
}

func TestClassifier_NoQueries(t *testing.T) {
	c := NewClassifier(nil)

	assert.Empty(t, c.Classify([]byte("# Title\n\nJust prose.\n")))
	assert.Empty(t, c.Classify([]byte("```sql\nselect ${a}\n```\n")))
}

func TestClassifier_IsQuery(t *testing.T) {
	c := NewClassifier(languages.New("sql", "py"))

	tests := []struct {
		name  string
		block Block
		want  bool
	}{
		{
			name:  "named query",
			block: Block{Label: "orders"},
			want:  true,
		},
		{
			name:  "display language",
			block: Block{Label: "SQL"},
			want:  false,
		},
		{
			name:  "display alias",
			block: Block{Label: "py", Body: "${x}"},
			want:  false,
		},
		{
			name:  "no label",
			block: Block{Body: "select 1"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsQuery(tt.block))
		})
	}
}
