// Package rules classifies confirmed anomalies: keyword rules over the raw
// line first, then numeric thresholds over the feature value.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CriticalSpike = "CRITICAL SPIKE"
	AuthFailure   = "AUTH FAILURE"
	Error         = "ERROR"
	DBIssue       = "DB ISSUE"
	HighResponse  = "HIGH RESPONSE"
	MediumSpike   = "MEDIUM SPIKE"
	Anomaly       = "ANOMALY"
)

type Classification struct {
	Category     string `json:"category"`
	SuggestedFix string `json:"suggestedFix"`
	Reason       string `json:"reason"`
}

type RuleYAML struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"` // qualquer uma
	With     []string `yaml:"with"`     // e tambem uma destas
	Pattern  string   `yaml:"pattern"`  // regex, alternativa as keywords
	Category string   `yaml:"category"`
	Fix      string   `yaml:"fix"`
	Reason   string   `yaml:"reason"`
}

// Rule matches against the lower-cased raw text.
type Rule struct {
	Name     string
	Keywords []string
	With     []string
	RE       *regexp.Regexp
	Result   Classification
}

func (r Rule) Match(lower string) bool {
	if r.RE != nil {
		return r.RE.MatchString(lower)
	}
	if !containsAny(lower, r.Keywords) {
		return false
	}
	return len(r.With) == 0 || containsAny(lower, r.With)
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

type threshold struct {
	above  float64
	result Classification
}

// Numeric fallbacks, strict '>' and checked in descending order.
var thresholds = []threshold{
	{500, Classification{CriticalSpike, "Investigate timeout, infinite loop, or network delay.", ""}},
	{100, Classification{HighResponse, "Possible heavy computation or I/O blocking.", ""}},
	{50, Classification{MediumSpike, "Possible slow code path, profile and optimize.", ""}},
}

var fallback = Classification{Anomaly, "Investigate (no clear reason).", ""}

// DefaultRules returns the built-in keyword rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "timeout", Keywords: []string{"timeout", "timed out", "time out"},
			Result: Classification{CriticalSpike, "Investigate timeout, network latency or infinite loop.", "Timeout in log"}},
		{Name: "auth", Keywords: []string{"login"}, With: []string{"fail", "incorrect", "denied"},
			Result: Classification{AuthFailure, "Check authentication service and failed attempts.", "Login failure"}},
		{Name: "error", Keywords: []string{"error", "exception", "fail"},
			Result: Classification{Error, "Check stacktrace and fix exception cause.", "Error/Exception in log"}},
		{Name: "db", Keywords: []string{"db", "database"},
			Result: Classification{DBIssue, "Inspect DB performance / queries / connections.", "Database related"}},
	}
}

type Set struct {
	Items []Rule
}

func Default() *Set { return &Set{Items: DefaultRules()} }

// LoadFromFile reads keyword rules from YAML. An empty path yields the
// built-in rules. Entries without a category or matcher are skipped.
func LoadFromFile(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var raw []RuleYAML
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	out := &Set{}
	for _, r := range raw {
		if r.Category == "" {
			continue
		}
		rule := Rule{
			Name:     r.Name,
			Keywords: lowerAll(r.Keywords),
			With:     lowerAll(r.With),
			Result:   Classification{r.Category, r.Fix, r.Reason},
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				continue
			}
			rule.RE = re
		} else if len(rule.Keywords) == 0 {
			continue
		}
		out.Items = append(out.Items, rule)
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

// Classify returns the first matching keyword rule, else the numeric band of feature.
func (s *Set) Classify(feature float64, raw string) Classification {
	lower := strings.ToLower(raw)
	for _, r := range s.Items {
		if r.Match(lower) {
			return r.Result
		}
	}
	for _, t := range thresholds {
		if feature > t.above {
			return t.result
		}
	}
	return fallback
}

// Severity maps a category to the dashboard tag.
func Severity(category string) string {
	switch category {
	case CriticalSpike:
		return "crit"
	case HighResponse:
		return "high"
	case AuthFailure, Error, DBIssue:
		return "warn"
	case MediumSpike:
		return "med"
	default:
		return "normal"
	}
}
