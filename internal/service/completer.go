package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// Completer is the slice of ai.Cascade the services depend on.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error)
}

const (
	promptSafetyLimit = 24000
	promptKeepHead    = 12000
	promptKeepTail    = 4000
)

// clampPrompt keeps oversized prompts under the provider request limit by
// dropping the middle of the text.
func clampPrompt(prompt string) string {
	if len(prompt) <= promptSafetyLimit {
		return prompt
	}
	return ai.TrimMiddle(prompt, promptKeepHead, promptKeepTail, "\n\n... [MIDDLE CONTEXT REMOVED] ...\n\n")
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + ".."
}

// intFromJSON reads a number or numeric string, clamped to [min, max].
func intFromJSON(value interface{}, fallback, min, max int) int {
	parsed, ok := numberFromJSON(value)
	if !ok {
		return fallback
	}
	rounded := int(math.Round(parsed))
	if rounded < min {
		return min
	}
	if rounded > max {
		return max
	}
	return rounded
}

func numberFromJSON(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if slash := strings.Index(trimmed, "/"); slash > 0 {
			trimmed = strings.TrimSpace(trimmed[:slash])
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	case bool:
		return 0, false
	}
	return 0, false
}

// stringFromJSON stringifies scalar or structured JSON values.
func stringFromJSON(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringFromJSON(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// stringListFromJSON accepts a JSON list or a free-text string and returns
// the non-empty entries. "None" and empty values yield nil.
func stringListFromJSON(value interface{}) []string {
	var items []string
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			items = append(items, stringFromJSON(item))
		}
	case string:
		items = strings.Split(v, "\n")
	default:
		return nil
	}

	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*•"))
		if item == "" || strings.EqualFold(item, "none") || strings.EqualFold(item, "n/a") {
			continue
		}
		cleaned = append(cleaned, item)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

func clampUnit(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// plainText strips markup from user input before it reaches a prompt or the corpus.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
