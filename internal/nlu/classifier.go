package nlu

import (
	"regexp"
	"strings"
)

// Rule maps a normalized utterance to an intent. Match sees the lower-cased,
// trimmed text. Extract, when set, sees the trimmed text with its original
// casing so names like "Paris" survive.
type Rule struct {
	Intent  Intent
	Match   func(text string) bool
	Extract func(raw string) Entities
}

var (
	timePhrases  = []string{"what's the time", "what is the time", "current time", "time now"}
	musicTargets = []string{"song", "music", "spotify"}

	cityPattern = regexp.MustCompile(`(?i)in\s+([a-zA-Z\s]+)$`)
	whenPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*(:\s*\d{2})?\s*(am|pm)?`)
)

// DefaultRules is the ordered rule set used by Classify. The first matching
// rule wins; anything left over is small talk.
var DefaultRules = []Rule{
	{
		Intent: IntentEmpty,
		Match:  func(t string) bool { return t == "" },
	},
	{
		Intent: IntentGetTime,
		Match:  func(t string) bool { return containsAny(t, timePhrases) },
	},
	{
		Intent:  IntentWeather,
		Match:   func(t string) bool { return strings.Contains(t, "weather") || strings.Contains(t, "forecast") },
		Extract: extractCity,
	},
	{
		Intent: IntentSetAlarm,
		Match: func(t string) bool {
			return strings.Contains(t, "set alarm") || (strings.Contains(t, "alarm") && strings.Contains(t, "set"))
		},
		Extract: extractWhen,
	},
	{
		Intent: IntentPlayMusic,
		Match:  func(t string) bool { return strings.Contains(t, "play") && containsAny(t, musicTargets) },
	},
}

// Classifier runs an ordered list of rules over normalized text.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a Classifier over the given rules. A nil slice uses
// DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify maps an utterance to an intent and its entities. The entity map is
// never nil.
func (c *Classifier) Classify(utterance string) (Intent, Entities) {
	raw := strings.TrimSpace(utterance)
	text := strings.ToLower(raw)
	for _, rule := range c.rules {
		if !rule.Match(text) {
			continue
		}
		if rule.Extract != nil {
			return rule.Intent, rule.Extract(raw)
		}
		return rule.Intent, Entities{}
	}
	return IntentSmallTalk, Entities{}
}

// Classify runs the default rule set.
func Classify(utterance string) (Intent, Entities) {
	return defaultClassifier.Classify(utterance)
}

var defaultClassifier = NewClassifier(nil)

// Normalize lower-cases and trims an utterance.
func Normalize(utterance string) string {
	return strings.TrimSpace(strings.ToLower(utterance))
}

func extractCity(raw string) Entities {
	m := cityPattern.FindStringSubmatch(raw)
	if m == nil {
		return Entities{}
	}
	city := strings.TrimSpace(m[1])
	if city == "" {
		return Entities{}
	}
	return Entities{EntityCity: city}
}

func extractWhen(raw string) Entities {
	m := strings.TrimSpace(whenPattern.FindString(raw))
	if m == "" {
		return Entities{}
	}
	return Entities{EntityWhen: m}
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
