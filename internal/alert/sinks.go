package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/utils"
	"github.com/raysh454/hunter/internal/webclient"
)

// Build returns a sink for every channel that has credentials configured.
func Build(cfg Config, wc webclient.WebClient) []Sink {
	var sinks []Sink
	if cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, NewDiscordSink(cfg.Discord, wc))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		sinks = append(sinks, NewTelegramSink(cfg.Telegram, wc))
	}
	if cfg.Slack.WebhookURL != "" {
		sinks = append(sinks, NewSlackSink(cfg.Slack, wc))
	}
	return sinks
}

func post(ctx context.Context, wc webclient.WebClient, sink, url string, body any) error {
	resp, err := webclient.DoJSON(ctx, wc, http.MethodPost, url, nil, body)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Sink: sink, Status: resp.StatusCode, Body: utils.Truncate(string(resp.Body), 200, "")}
	}
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ─── Discord ───────────────────────────────────────────────────────────

var discordColors = map[string]int{
	"LOW":      0x2ECC71,
	"MEDIUM":   0xE67E22,
	"HIGH":     0xE74C3C,
	"CRITICAL": 0xC0392B,
}

type DiscordSink struct {
	cfg DiscordConfig
	wc  webclient.WebClient
}

func NewDiscordSink(cfg DiscordConfig, wc webclient.WebClient) *DiscordSink {
	return &DiscordSink{cfg: cfg, wc: wc}
}

func (s *DiscordSink) Name() string { return "discord" }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	Timestamp string `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (s *DiscordSink) Send(ctx context.Context, a model.Alert) error {
	e := discordEmbed{
		Title:       clip(headline(a)+": "+a.Title, 256),
		Description: clip(a.Details, 4000),
		Color:       discordColors[SeverityLabel(a.Severity)],
		Timestamp:   a.Time.Format("2006-01-02T15:04:05Z07:00"),
	}
	e.Footer.Text = "hunter " + string(a.Kind)
	if a.Asset != "" {
		e.Fields = append(e.Fields, discordField{Name: "Target", Value: a.Asset.String(), Inline: true})
	}
	e.Fields = append(e.Fields, discordField{Name: "Severity Score", Value: fmt.Sprint(a.Severity), Inline: true})
	if a.Verdict != "" {
		e.Fields = append(e.Fields, discordField{Name: "Assessment", Value: clip(a.Verdict, 1024)})
	}
	if a.BountyEstimate != nil {
		e.Fields = append(e.Fields, discordField{Name: "Bounty Estimate", Value: fmt.Sprintf("$%.0f", *a.BountyEstimate), Inline: true})
	}
	if a.ReportID != "" {
		e.Fields = append(e.Fields, discordField{Name: "Report", Value: a.ReportID, Inline: true})
	}
	return post(ctx, s.wc, s.Name(), s.cfg.WebhookURL, discordMessage{Username: s.cfg.Username, Embeds: []discordEmbed{e}})
}

// ─── Telegram ──────────────────────────────────────────────────────────

type TelegramSink struct {
	cfg TelegramConfig
	wc  webclient.WebClient
}

func NewTelegramSink(cfg TelegramConfig, wc webclient.WebClient) *TelegramSink {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultConfig().Telegram.APIURL
	}
	return &TelegramSink{cfg: cfg, wc: wc}
}

func (s *TelegramSink) Name() string { return "telegram" }

// FormatText renders the Markdown message body shared by text sinks.
func FormatText(a model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", headline(a))
	if a.Title != "" {
		fmt.Fprintf(&b, "%s\n", a.Title)
	}
	if a.Asset != "" {
		fmt.Fprintf(&b, "Target: `%s`\n", a.Asset)
	}
	if a.Target != nil && a.Target.Program != "" {
		fmt.Fprintf(&b, "Program: %s (%s)\n", a.Target.Program, a.Target.Platform)
	}
	if a.Kind == model.AlertCriticalFinding {
		fmt.Fprintf(&b, "Severity: %d/10\n", a.Severity)
	}
	if a.Verdict != "" {
		fmt.Fprintf(&b, "Risk: %s\n", a.Verdict)
	}
	if a.BountyEstimate != nil {
		fmt.Fprintf(&b, "Bounty estimate: $%.0f\n", *a.BountyEstimate)
	}
	if a.ReportID != "" {
		fmt.Fprintf(&b, "Report: %s\n", a.ReportID)
	}
	if a.Details != "" {
		fmt.Fprintf(&b, "\n%s\n", a.Details)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *TelegramSink) Send(ctx context.Context, a model.Alert) error {
	url := strings.TrimRight(s.cfg.APIURL, "/") + "/bot" + s.cfg.BotToken + "/sendMessage"
	return post(ctx, s.wc, s.Name(), url, map[string]string{
		"chat_id":    s.cfg.ChatID,
		"text":       clip(FormatText(a), 4096),
		"parse_mode": "Markdown",
	})
}

// ─── Slack ─────────────────────────────────────────────────────────────

type SlackSink struct {
	cfg SlackConfig
	wc  webclient.WebClient
}

func NewSlackSink(cfg SlackConfig, wc webclient.WebClient) *SlackSink {
	return &SlackSink{cfg: cfg, wc: wc}
}

func (s *SlackSink) Name() string { return "slack" }

type slackMessage struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (s *SlackSink) Send(ctx context.Context, a model.Alert) error {
	return post(ctx, s.wc, s.Name(), s.cfg.WebhookURL, slackMessage{Channel: s.cfg.Channel, Text: FormatText(a)})
}
