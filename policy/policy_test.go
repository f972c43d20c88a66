package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/planerr"
)

func TestDefault(t *testing.T) {
	p, err := Compile("")
	require.NoError(t, err)
	assert.Equal(t, Default, p.String())

	ok, err := p.Accept(Input{Violations: 0, Iteration: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Accept(Input{Violations: 2, Iteration: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name string
		expr string
		in   Input
		want bool
	}{
		{"tolerate one late", "violations <= 1 && iteration >= 3", Input{Violations: 1, Iteration: 3}, true},
		{"tolerate one early", "violations <= 1 && iteration >= 3", Input{Violations: 1, Iteration: 2}, false},
		{"score target", "score >= 4", Input{Score: 5, Violations: 3}, true},
		{"score short", "score >= 4", Input{Score: 3}, false},
		{"constant", "true", Input{Violations: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustCompile(tt.expr)
			got, err := p.Accept(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("violations ==")
	require.Error(t, err)
	assert.ErrorIs(t, err, planerr.ErrInvalidInput)

	_, err = Compile("missing > 0")
	assert.ErrorIs(t, err, planerr.ErrInvalidInput)

	_, err = Compile("violations + 1")
	assert.ErrorIs(t, err, planerr.ErrInvalidInput)

	assert.Panics(t, func() { MustCompile("(") })
}

func TestEvaluationErrorRejects(t *testing.T) {
	p := MustCompile("violations / (iteration - iteration) == 0")
	ok, err := p.Accept(Input{Violations: 1, Iteration: 1})
	assert.Error(t, err)
	assert.False(t, ok)
}
