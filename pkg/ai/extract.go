package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// FromFencedBlock returns the content of the first fenced code block that parses as JSON.
func FromFencedBlock(text string) (json.RawMessage, bool) {
	for _, match := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if raw, ok := validJSON(match[1]); ok {
			return raw, true
		}
	}
	return nil, false
}

// FromFirstBalancedSpan returns the first balanced {...} or [...] span that parses as JSON.
// Brackets inside string literals are ignored.
func FromFirstBalancedSpan(text string) (json.RawMessage, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		end := balancedEnd(text, start)
		if end < 0 {
			continue
		}
		if raw, ok := validJSON(text[start : end+1]); ok {
			return raw, true
		}
	}
	return nil, false
}

// FromWholeText treats the entire text as JSON.
func FromWholeText(text string) (json.RawMessage, bool) {
	return validJSON(text)
}

// ExtractJSON tries each strategy in order and returns the first valid payload.
// Providers routinely wrap JSON in prose or markdown, hence the fallbacks.
func ExtractJSON(text string) (json.RawMessage, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	for _, strategy := range []func(string) (json.RawMessage, bool){FromFencedBlock, FromFirstBalancedSpan, FromWholeText} {
		if raw, ok := strategy(text); ok {
			return raw, true
		}
	}
	return nil, false
}

// ExtractInto extracts JSON from text and decodes it into v.
func ExtractInto(text string, v interface{}) bool {
	raw, ok := ExtractJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func validJSON(candidate string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil, false
	}
	return json.RawMessage(trimmed), true
}

func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}
