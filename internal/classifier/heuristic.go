package classifier

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/raysh454/hunter/internal/model"
)

// Rule adds Weight to the score when Pattern matches the text. Weights of
// all matching rules are summed and clamped to [0,10].
type Rule struct {
	ID      string
	Label   string
	Pattern *regexp.Regexp
	Weight  int
}

// DefaultRules covers common scanner vocabulary: severities, CVE ids and
// injection classes.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "sev-critical", Label: "critical severity", Pattern: regexp.MustCompile(`(?i)\[critical\]|\bcritical\b`), Weight: 8},
		{ID: "sev-high", Label: "high severity", Pattern: regexp.MustCompile(`(?i)\[high\b|\bhigh\b`), Weight: 5},
		{ID: "sev-medium", Label: "medium severity", Pattern: regexp.MustCompile(`(?i)\[medium\b|\bmedium\b`), Weight: 2},
		{ID: "cve", Label: "known CVE", Pattern: regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`), Weight: 2},
		{ID: "rce", Label: "remote code execution", Pattern: regexp.MustCompile(`(?i)remote code execution|\brce\b|command injection`), Weight: 4},
		{ID: "sqli", Label: "SQL injection", Pattern: regexp.MustCompile(`(?i)sql injection|\bsqli\b`), Weight: 4},
		{ID: "ssrf", Label: "server-side request forgery", Pattern: regexp.MustCompile(`(?i)\bssrf\b|server-side request forgery`), Weight: 3},
		{ID: "xss", Label: "cross-site scripting", Pattern: regexp.MustCompile(`(?i)\bxss\b|cross-site scripting`), Weight: 2},
		{ID: "auth-bypass", Label: "authentication bypass", Pattern: regexp.MustCompile(`(?i)auth(entication)? bypass|idor|insecure direct object`), Weight: 3},
		{ID: "secrets", Label: "exposed secret", Pattern: regexp.MustCompile(`(?i)api[_ -]?key|secret[_ -]?key|private key|aws_access_key_id`), Weight: 3},
	}
}

// bountyByScore maps a priority score to a typical payout.
var bountyByScore = []struct {
	min    int
	amount float64
}{
	{9, 5000},
	{7, 2000},
	{5, 500},
	{3, 150},
}

// Heuristic classifies text locally with weighted regex rules.
type Heuristic struct {
	rules []Rule
}

func NewHeuristic(rules []Rule) *Heuristic {
	return &Heuristic{rules: rules}
}

func (h *Heuristic) Classify(ctx context.Context, text string) (model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return model.Classification{}, err
	}

	score := 0
	var labels []string
	for _, r := range h.rules {
		if r.Pattern.MatchString(text) {
			score += r.Weight
			labels = append(labels, r.Label)
		}
	}
	score = Clamp(score)
	sort.Strings(labels)

	c := model.Classification{PriorityScore: score}
	switch {
	case score >= 8:
		c.Verdict = "HIGH_RISK"
	case score >= 4:
		c.Verdict = "MEDIUM_RISK"
	default:
		c.Verdict = "LOW_RISK"
	}
	if len(labels) > 0 {
		c.Verdict = fmt.Sprintf("%s: %s", c.Verdict, strings.Join(labels, ", "))
	}
	for _, b := range bountyByScore {
		if score >= b.min {
			v := b.amount
			c.BountyEstimate = &v
			break
		}
	}
	return c, nil
}
