package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArray(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare array",
			in:   `[{"a":1}]`,
			want: `[{"a":1}]`,
		},
		{
			name: "fenced json",
			in:   "```json\n[{\"a\":1}]\n```",
			want: `[{"a":1}]`,
		},
		{
			name: "plain fence",
			in:   "```\n[]\n```",
			want: `[]`,
		},
		{
			name: "prose around array",
			in:   "Here are the products:\n[{\"name\":\"x\"}]\nHope that helps!",
			want: `[{"name":"x"}]`,
		},
		{
			name: "leading whitespace",
			in:   "   \n\t[1,2,3]  ",
			want: `[1,2,3]`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSONArray(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONArrayRejectsNonArray(t *testing.T) {
	for _, in := range []string{
		"",
		"no json here",
		`{"object":"not array"}`,
		"] backwards [",
	} {
		_, err := ExtractJSONArray(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestCountTokensInText(t *testing.T) {
	assert.EqualValues(t, 0, CountTokensInText(""))
	assert.EqualValues(t, 1, CountTokensInText("four"))
	assert.EqualValues(t, 25, CountTokensInText(string(make([]byte, 100))))
}

func TestNewServiceRejectsUnknownProvider(t *testing.T) {
	_, err := NewService(Config{Provider: "sorcery", Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
