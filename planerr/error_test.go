package planerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New("parse_time", CodeParse, `invalid time "x"`),
			want: `parse_time/PARSE_ERROR: invalid time "x"`,
		},
		{
			name: "with cause",
			err:  New("load", CodeInvalidInput, "bad record").WithCause(errors.New("eof")),
			want: "load/INVALID_INPUT: bad record: eof",
		},
		{
			name: "empty message",
			err:  New("lookup", CodeUnknownRoute, ""),
			want: "lookup/UNKNOWN_ROUTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("step 3: %w", UnknownRoute("A", "B"))

	assert.True(t, errors.Is(err, ErrUnknownRoute))
	assert.False(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, &Error{Code: CodeUnknownRoute}))
	assert.True(t, errors.Is(err, &Error{Code: CodeUnknownRoute, Operation: "lookup_travel_time"}))
	assert.False(t, errors.Is(err, &Error{Code: CodeUnknownRoute, Operation: "other"}))
}

func TestError_As(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UnknownEntity("person", "Jessica"))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeUnknownEntity, pe.Code)
	assert.Equal(t, "Jessica", pe.Details["person"])
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New("op", CodeParse, "msg").WithCause(cause)

	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeParse, CodeOf(fmt.Errorf("x: %w", Parse("parse_step", "bad"))))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}
