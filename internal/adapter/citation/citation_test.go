package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "mixed forms deduplicated",
			answer: "Leaves are eaten [SOURCE 1]. See also [SOURCE 2: Intro] and [source 1].",
			want:   []string{"1", "2"},
		},
		{
			name:   "numeric order",
			answer: "A [SOURCE 10]. B [SOURCE 2]. C [SOURCE 1].",
			want:   []string{"1", "2", "10"},
		},
		{
			name:   "canonical labels",
			answer: "Padded [SOURCE 007].",
			want:   []string{"7"},
		},
		{
			name:   "extra whitespace after keyword",
			answer: "Spaced [Source   3].",
			want:   []string{"3"},
		},
		{
			name:   "rejected forms",
			answer: "[SOURCE0] [SOURCE 0] [SOURCE -1] [SOURCE x] [SOURCE 4:] [SOURCE 5 ] [SOURCES 6] [SOURCE 7",
			want:   []string{},
		},
		{
			name:   "no markers",
			answer: "Plain answer without citations.",
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.answer))
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	answer := "[SOURCE 3] [SOURCE 1] [SOURCE 2] [SOURCE 3: again]"
	first := Extract(answer)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(answer))
	}
}

func TestFaithfulness(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{
			name:   "all cited",
			answer: "The diet consists of leaves [SOURCE 1]. It also eats bark [SOURCE 2].",
			want:   1,
		},
		{
			name:   "half cited",
			answer: "The diet consists of leaves [SOURCE 1]. Nothing else is known about it.",
			want:   0.5,
		},
		{
			name:   "short sentences ignored",
			answer: "Yes. The diet consists of leaves [SOURCE 1]. Ok!",
			want:   1,
		},
		{
			name:   "marker text with abbreviation",
			answer: "Cats eat meat according to the text [SOURCE 1: Diet section, p. 3].",
			want:   1,
		},
		{
			name:   "marker text with several periods",
			answer: "Cats hunt at night [SOURCE 2: e.g. mice. Also birds]. Nothing else is known about it.",
			want:   0.5,
		},
		{
			name:   "nothing substantive",
			answer: "Yes. No. Maybe.",
			want:   0,
		},
		{
			name:   "empty",
			answer: "",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Faithfulness(tt.answer, nil)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestValidate(t *testing.T) {
	valid, dangling := Validate([]string{"1", "2", "5"}, 3)
	assert.Equal(t, []string{"1", "2"}, valid)
	assert.Equal(t, []string{"5"}, dangling)

	valid, dangling = Validate(nil, 3)
	assert.Empty(t, valid)
	assert.Empty(t, dangling)
}

func TestCollapseMarkers(t *testing.T) {
	got := collapseMarkers("A [source 02: p. 3] B [SOURCE 4] C [SOURCE 5 ] D")
	assert.Equal(t, "A [SOURCE 2] B [SOURCE 4] C [SOURCE 5 ] D", got)
}
