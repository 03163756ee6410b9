// Package classifier turns combined scanner output into a verdict, a
// priority score and an optional bounty estimate.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

// Classifier is the external classification service.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
}

const (
	TypeHeuristic = "heuristic"
	TypeGemini    = "gemini"
)

type Config struct {
	Type   string `mapstructure:"type"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

func DefaultConfig() Config {
	return Config{Type: TypeHeuristic, Model: "gemini-1.5-flash"}
}

// New builds the classifier selected by cfg.Type. The gemini classifier
// needs an API key.
func New(ctx context.Context, cfg Config, logger logging.Logger) (Classifier, error) {
	switch cfg.Type {
	case "", TypeHeuristic:
		return NewHeuristic(DefaultRules()), nil
	case TypeGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini classifier: api_key is required")
		}
		return NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}
}

var (
	dollarAmount = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d+)?)`)
	scoreNumber  = regexp.MustCompile(`\b(10|[0-9])\b`)
	jsonObject   = regexp.MustCompile(`(?s)\{.*\}`)
)

type modelAnswer struct {
	Verdict        string   `json:"verdict"`
	PriorityScore  *float64 `json:"priority_score"`
	BountyEstimate *float64 `json:"bounty_estimate"`
}

// ParseAnswer extracts a classification from a model reply. A JSON object
// anywhere in the reply wins; otherwise the first dollar amount is the bounty
// and the first number in 0..10 after "priority" is the score.
func ParseAnswer(reply string) (model.Classification, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return model.Classification{}, fmt.Errorf("empty classifier reply")
	}

	if m := jsonObject.FindString(reply); m != "" {
		var ans modelAnswer
		if err := json.Unmarshal([]byte(m), &ans); err == nil && ans.Verdict != "" {
			c := model.Classification{Verdict: strings.TrimSpace(ans.Verdict)}
			if ans.PriorityScore != nil {
				c.PriorityScore = Clamp(int(*ans.PriorityScore + 0.5))
			}
			if ans.BountyEstimate != nil && *ans.BountyEstimate > 0 {
				v := *ans.BountyEstimate
				c.BountyEstimate = &v
			}
			return c, nil
		}
	}

	c := model.Classification{Verdict: reply}
	lower := strings.ToLower(reply)
	if i := strings.Index(lower, "priority"); i >= 0 {
		if m := scoreNumber.FindStringSubmatch(lower[i:]); m != nil {
			n, _ := strconv.Atoi(m[1])
			c.PriorityScore = Clamp(n)
		}
	}
	if m := dollarAmount.FindStringSubmatch(reply); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			c.BountyEstimate = &v
		}
	}
	return c, nil
}

// Clamp bounds a priority score to [0,10].
func Clamp(score int) int {
	return max(0, min(10, score))
}
