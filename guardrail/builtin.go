package guardrail

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/hupe1980/agentloop/core"
)

// MaxInputLength trips when the user supplied text of the run input exceeds
// limit runes.
func MaxInputLength(limit int) Input {
	return NewInput("max_input_length", func(_ *core.RunContext, input []core.Item) (Result, error) {
		n := 0
		for _, it := range input {
			if it.Kind == core.ItemUserMessage {
				n += utf8.RuneCountInString(it.Text())
			}
		}
		if n > limit {
			return Trip(map[string]any{"length": n, "limit": limit}), nil
		}
		return Pass(), nil
	})
}

// DenyInputPatterns trips when a user message matches one of the patterns.
func DenyInputPatterns(name string, patterns ...*regexp.Regexp) Input {
	return NewInput(name, func(_ *core.RunContext, input []core.Item) (Result, error) {
		for _, it := range input {
			if it.Kind != core.ItemUserMessage {
				continue
			}
			if p := firstMatch(it.Text(), patterns); p != nil {
				return Trip(map[string]any{"pattern": p.String()}), nil
			}
		}
		return Pass(), nil
	})
}

// DenyOutputPatterns trips when the textual form of the final output matches
// one of the patterns.
func DenyOutputPatterns(name string, patterns ...*regexp.Regexp) Output {
	return NewOutput(name, func(_ *core.RunContext, output any) (Result, error) {
		text, ok := output.(string)
		if !ok {
			text = fmt.Sprintf("%v", output)
		}
		if p := firstMatch(text, patterns); p != nil {
			return Trip(map[string]any{"pattern": p.String()}), nil
		}
		return Pass(), nil
	})
}

func firstMatch(text string, patterns []*regexp.Regexp) *regexp.Regexp {
	for _, p := range patterns {
		if p.MatchString(text) {
			return p
		}
	}
	return nil
}
