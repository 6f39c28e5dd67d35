package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONStrategies(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "fenced json block",
			text: "Here you go:\n```json\n{\"status\": \"OK\"}\n```\nThanks!",
			want: `{"status": "OK"}`,
			ok:   true,
		},
		{
			name: "untagged fence",
			text: "```\n[\"a\", \"b\"]\n```",
			want: `["a", "b"]`,
			ok:   true,
		},
		{
			name: "object embedded in prose",
			text: "Sure! The verdict is {\"plagiarism_status\": \"BLOCKED\", \"note\": \"uses } in text\"} as requested.",
			want: `{"plagiarism_status": "BLOCKED", "note": "uses } in text"}`,
			ok:   true,
		},
		{
			name: "array before object",
			text: "Points: [\"one\", \"two\"] and {\"x\": 1}",
			want: `["one", "two"]`,
			ok:   true,
		},
		{
			name: "skips invalid span and finds later one",
			text: "{not json} then {\"ok\": true}",
			want: `{"ok": true}`,
			ok:   true,
		},
		{
			name: "whole text",
			text: "  42  ",
			want: `42`,
			ok:   true,
		},
		{
			name: "broken fence falls through to span",
			text: "```json\n{broken\n```\n{\"fixed\": 1}",
			want: `{"fixed": 1}`,
			ok:   true,
		},
		{
			name: "nothing usable",
			text: "I cannot help with that.",
			ok:   false,
		},
		{
			name: "empty",
			text: "   ",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, ok := ExtractJSON(tc.text)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.JSONEq(t, tc.want, string(raw))
			}
		})
	}
}

func TestExtractInto(t *testing.T) {
	var payload struct {
		Percentage int `json:"percentage"`
	}
	require.True(t, ExtractInto("Result: ```json\n{\"percentage\": 65}\n```", &payload))
	require.Equal(t, 65, payload.Percentage)

	var list []string
	require.False(t, ExtractInto("{\"percentage\": 65}", &list))
}

func TestBalancedSpanHandlesEscapes(t *testing.T) {
	raw, ok := FromFirstBalancedSpan(`prefix {"quote": "say \"hi\" {"} suffix`)
	require.True(t, ok)
	require.JSONEq(t, `{"quote": "say \"hi\" {"}`, string(raw))

	_, ok = FromFirstBalancedSpan("{ never closed")
	require.False(t, ok)
}
