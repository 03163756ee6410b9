package submission

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/utils"
	"github.com/raysh454/hunter/internal/webclient"
)

// HackerOneSink files reports through the HackerOne hacker API.
type HackerOneSink struct {
	cfg HackerOneConfig
	wc  webclient.WebClient
}

func NewHackerOneSink(cfg HackerOneConfig, wc webclient.WebClient) *HackerOneSink {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultConfig().HackerOne.APIURL
	}
	return &HackerOneSink{cfg: cfg, wc: wc}
}

func (h *HackerOneSink) Name() string { return "hackerone" }

// SeverityRating maps a priority score to HackerOne's rating names.
func SeverityRating(priority int) string {
	switch {
	case priority >= 9:
		return "critical"
	case priority >= 7:
		return "high"
	case priority >= 4:
		return "medium"
	case priority > 0:
		return "low"
	default:
		return "none"
	}
}

type h1Report struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			TeamHandle               string `json:"team_handle"`
			Title                    string `json:"title"`
			VulnerabilityInformation string `json:"vulnerability_information"`
			Impact                   string `json:"impact"`
			SeverityRating           string `json:"severity_rating"`
		} `json:"attributes"`
	} `json:"data"`
}

type h1Created struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *HackerOneSink) Submit(ctx context.Context, r *model.Report) (model.SubmissionOutcome, error) {
	var body h1Report
	body.Data.Type = "report"
	a := &body.Data.Attributes
	a.TeamHandle = r.Target.Program
	a.Title = r.Title
	a.VulnerabilityInformation = fmt.Sprintf("Asset: %s\n\n%s\n\n%s", r.Asset, r.Findings.Verdict, r.Findings.CombinedText)
	a.Impact = r.Findings.Verdict
	a.SeverityRating = SeverityRating(r.Findings.PriorityScore)

	headers := http.Header{}
	creds := base64.StdEncoding.EncodeToString([]byte(h.cfg.Username + ":" + h.cfg.Token))
	headers.Set("Authorization", "Basic "+creds)

	url := strings.TrimRight(h.cfg.APIURL, "/") + "/hackers/reports"
	resp, err := webclient.DoJSON(ctx, h.wc, http.MethodPost, url, headers, body)
	if err != nil {
		return model.SubmissionOutcome{}, err
	}
	if !resp.OK() {
		return model.SubmissionOutcome{}, &StatusError{Sink: h.Name(), Status: resp.StatusCode, Body: utils.Truncate(string(resp.Body), 300, "")}
	}
	var created h1Created
	if err := resp.DecodeJSON(&created); err != nil {
		return model.SubmissionOutcome{}, fmt.Errorf("%s responded %d: %w: %v", h.Name(), resp.StatusCode, ErrUnreadableResponse, err)
	}
	return model.SubmissionOutcome{
		Kind:      model.SubmissionAutomated,
		Sink:      h.Name(),
		Reference: created.Data.ID,
		Note:      "submitted to HackerOne as report " + created.Data.ID,
	}, nil
}
