package scanner

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/webclient"
)

// BurpAdapter drives a Burp Suite REST API: it starts a scan, polls the task
// until it settles and renders the reported issues.
type BurpAdapter struct {
	name         string
	base         string
	pollInterval time.Duration
	wc           webclient.WebClient
}

func NewBurpAdapter(name, endpoint, apiKey string, pollInterval time.Duration, wc webclient.WebClient) *BurpAdapter {
	base := strings.TrimRight(endpoint, "/")
	if apiKey != "" {
		base += "/" + apiKey
	}
	base += "/v0.1"
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &BurpAdapter{name: name, base: base, pollInterval: pollInterval, wc: wc}
}

func (b *BurpAdapter) Name() string { return b.name }

type burpIssue struct {
	Name       string `json:"name"`
	Severity   string `json:"severity"`
	Confidence string `json:"confidence"`
	Origin     string `json:"origin"`
	Path       string `json:"path"`
}

type burpTask struct {
	ScanStatus  string `json:"scan_status"`
	IssueEvents []struct {
		Issue burpIssue `json:"issue"`
	} `json:"issue_events"`
}

func (b *BurpAdapter) Scan(ctx context.Context, asset model.Asset) (string, error) {
	resp, err := webclient.DoJSON(ctx, b.wc, http.MethodPost, b.base+"/scan", nil,
		map[string]any{"urls": []string{asset.String()}})
	if err != nil {
		return "", fmt.Errorf("start burp scan: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("start burp scan: status %d", resp.StatusCode)
	}
	taskID := strings.TrimSpace(resp.Headers.Get("Location"))
	if taskID == "" {
		return "", fmt.Errorf("start burp scan: no task id in Location header")
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		task, err := b.poll(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch task.ScanStatus {
		case "succeeded":
			return renderBurpIssues(task), nil
		case "failed":
			return "", fmt.Errorf("burp task %s failed", taskID)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *BurpAdapter) poll(ctx context.Context, taskID string) (*burpTask, error) {
	resp, err := b.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: b.base + "/scan/" + taskID})
	if err != nil {
		return nil, fmt.Errorf("poll burp task %s: %w", taskID, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("poll burp task %s: status %d", taskID, resp.StatusCode)
	}
	var task burpTask
	if err := resp.DecodeJSON(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

// renderBurpIssues sorts issues so repeated scans with the same findings
// produce the same text.
func renderBurpIssues(task *burpTask) string {
	lines := make([]string, 0, len(task.IssueEvents))
	for _, ev := range task.IssueEvents {
		is := ev.Issue
		lines = append(lines, fmt.Sprintf("[%s/%s] %s at %s%s", is.Severity, is.Confidence, is.Name, is.Origin, is.Path))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
