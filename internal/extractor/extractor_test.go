package extractor_test

import (
	"testing"

	"storyline-server/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without closing marker", "```json\n{\"a\":1}", `{"a":1}`},
		{"prose around", "Here you go:\n{\"a\":{\"b\":2}}\nEnjoy!", `{"a":{"b":2}}`},
		{"fence and prose", "```json\nSure! {\"x\":\"y\"} done\n```", `{"x":"y"}`},
		{"first and last brace span", `{"a":1} and {"b":2}`, `{"a":1} and {"b":2}`},
		{"plain fence is not stripped", "```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractor.Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_NoStructure(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"no braces":         "just some prose",
		"only open":         "{ unterminated",
		"only close":        "closing }",
		"close before open": "} backwards {",
		"fence only":        "```json```",
		"blank fence":       "```json\n   \n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := extractor.Extract(raw)
			assert.ErrorIs(t, err, extractor.ErrNoStructureFound)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var v struct {
			Title string `json:"title"`
		}
		err := extractor.Decode("```json\n{\"title\":\"Night Train\"}\n```", &v)
		require.NoError(t, err)
		assert.Equal(t, "Night Train", v.Title)
	})

	t.Run("braces but invalid json", func(t *testing.T) {
		var v map[string]any
		err := extractor.Decode("{title: unquoted}", &v)
		assert.ErrorIs(t, err, extractor.ErrParseFailure)
	})

	t.Run("no structure", func(t *testing.T) {
		var v map[string]any
		err := extractor.Decode("nothing here", &v)
		assert.ErrorIs(t, err, extractor.ErrNoStructureFound)
	})
}
