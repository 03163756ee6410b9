package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/retry"
	"github.com/raysh454/hunter/internal/testutil"
	"github.com/raysh454/hunter/internal/webclient"
)

func fastConfig() Config {
	return Config{Retry: retry.Policy{MaxRetries: 2, Base: 2, Unit: time.Millisecond}}
}

func criticalAlert() model.Alert {
	bounty := 2000.0
	return model.Alert{
		Kind:           model.AlertCriticalFinding,
		Title:          "SQL injection",
		Asset:          "https://a.example",
		ReportID:       "r-1",
		Severity:       9,
		Verdict:        "HIGH_RISK: SQL injection",
		BountyEstimate: &bounty,
	}
}

// ─── Dispatcher ────────────────────────────────────────────────────────

func TestDispatch_PartialFailure(t *testing.T) {
	t.Parallel()
	good := &testutil.DummyAlertSink{SinkName: "telegram"}
	bad := &testutil.DummyAlertSink{SinkName: "discord", AlwaysFail: true}
	logger := &testutil.DummyLogger{}
	d := NewDispatcher(fastConfig(), []Sink{good, bad}, logger)

	res := d.Notify(context.Background(), criticalAlert())
	assert.True(t, res["telegram"].Delivered)
	assert.Equal(t, 1, res["telegram"].Attempts)
	assert.False(t, res["discord"].Delivered)
	assert.Equal(t, 3, res["discord"].Attempts)
	assert.Equal(t, []string{"discord"}, res.Failed())
	assert.Equal(t, 3, bad.CallCount())
	assert.Len(t, good.Delivered(), 1)
	assert.Equal(t, 1, logger.ErrorCount(), "exhaustion is logged once")
}

func TestDispatch_RetryThenSuccess(t *testing.T) {
	t.Parallel()
	flaky := &testutil.DummyAlertSink{SinkName: "slack", FailTimes: 2}
	d := NewDispatcher(fastConfig(), []Sink{flaky}, &testutil.DummyLogger{})

	res := d.Notify(context.Background(), criticalAlert())
	assert.True(t, res.AllDelivered())
	assert.Equal(t, 3, res["slack"].Attempts)
	assert.Equal(t, 3, flaky.CallCount())
}

func TestDispatch_SlowSinkDoesNotDelayOthers(t *testing.T) {
	t.Parallel()
	slow := &testutil.DummyAlertSink{SinkName: "slow", Delay: 200 * time.Millisecond}
	fast := &testutil.DummyAlertSink{SinkName: "fast", AlwaysFail: true}
	cfg := fastConfig()
	d := NewDispatcher(cfg, []Sink{slow, fast}, &testutil.DummyLogger{})

	start := time.Now()
	res := d.Notify(context.Background(), criticalAlert())
	elapsed := time.Since(start)
	assert.Less(t, elapsed, 400*time.Millisecond, "sinks run concurrently")
	assert.True(t, res["slow"].Delivered)
	assert.Equal(t, 3, res["fast"].Attempts)
}

func TestDispatch_UnknownSink(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(fastConfig(), []Sink{&testutil.DummyAlertSink{SinkName: "slack"}}, &testutil.DummyLogger{})
	res := d.Dispatch(context.Background(), &Job{Alert: criticalAlert(), Sinks: []string{"slack", "pager"}})
	assert.True(t, res["slack"].Delivered)
	assert.ErrorIs(t, res["pager"].Err, ErrUnknownSink)
	assert.Equal(t, []string{"pager"}, res.Failed())
}

func TestDispatch_UnknownSinksMixedWithKnown(t *testing.T) {
	t.Parallel()
	var sinks []Sink
	var names []string
	for i := range 8 {
		name := fmt.Sprintf("sink-%d", i)
		sinks = append(sinks, &testutil.DummyAlertSink{SinkName: name, Delay: time.Millisecond})
		names = append(names, name, fmt.Sprintf("missing-%d", i))
	}
	d := NewDispatcher(fastConfig(), sinks, &testutil.DummyLogger{})

	for range 20 {
		res := d.Dispatch(context.Background(), &Job{Alert: criticalAlert(), Sinks: append(names, "sink-0")})
		require.Len(t, res, 16)
		for i := range 8 {
			assert.True(t, res[fmt.Sprintf("sink-%d", i)].Delivered)
			assert.ErrorIs(t, res[fmt.Sprintf("missing-%d", i)].Err, ErrUnknownSink)
		}
	}
	assert.Equal(t, 20, sinks[0].(*testutil.DummyAlertSink).CallCount(), "a repeated name is delivered once")
}

func TestDispatch_CancelledContext(t *testing.T) {
	t.Parallel()
	sink := &testutil.DummyAlertSink{SinkName: "slack"}
	d := NewDispatcher(fastConfig(), []Sink{sink}, &testutil.DummyLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Notify(ctx, criticalAlert())
	assert.False(t, res["slack"].Delivered)
	assert.Zero(t, sink.CallCount())
}

func TestDispatch_SetsTime(t *testing.T) {
	t.Parallel()
	sink := &testutil.DummyAlertSink{SinkName: "s"}
	d := NewDispatcher(fastConfig(), []Sink{sink}, &testutil.DummyLogger{})
	d.Notify(context.Background(), criticalAlert())
	require.Len(t, sink.Delivered(), 1)
	assert.False(t, sink.Delivered()[0].Time.IsZero())
}

// ─── Sinks ─────────────────────────────────────────────────────────────

type captured struct {
	mu   sync.Mutex
	reqs []*webclient.Request
}

func (c *captured) client(status int) *testutil.DummyWebClient {
	return &testutil.DummyWebClient{Handler: func(req *webclient.Request) (*webclient.Response, error) {
		c.mu.Lock()
		c.reqs = append(c.reqs, req)
		c.mu.Unlock()
		return &webclient.Response{StatusCode: status, Body: []byte("nope")}, nil
	}}
}

func TestDiscordSink(t *testing.T) {
	t.Parallel()
	var c captured
	s := NewDiscordSink(DiscordConfig{WebhookURL: "https://discord.test/hook", Username: "hunter"}, c.client(http.StatusNoContent))
	a := criticalAlert()
	a.Time = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Send(context.Background(), a))

	require.Len(t, c.reqs, 1)
	assert.Equal(t, "https://discord.test/hook", c.reqs[0].URL)
	var msg discordMessage
	require.NoError(t, json.Unmarshal(c.reqs[0].Body, &msg))
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, 0xC0392B, msg.Embeds[0].Color)
	assert.Equal(t, "Vulnerability detected (CRITICAL): SQL injection", msg.Embeds[0].Title)
	assert.Equal(t, "2026-01-02T03:04:05Z", msg.Embeds[0].Timestamp)
}

func TestTelegramSink(t *testing.T) {
	t.Parallel()
	var c captured
	s := NewTelegramSink(TelegramConfig{BotToken: "123:abc", ChatID: "42"}, c.client(http.StatusOK))
	require.NoError(t, s.Send(context.Background(), criticalAlert()))

	assert.Equal(t, "https://api.telegram.org/bot123:abc/sendMessage", c.reqs[0].URL)
	var body map[string]string
	require.NoError(t, json.Unmarshal(c.reqs[0].Body, &body))
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "Markdown", body["parse_mode"])
	assert.Contains(t, body["text"], "Target: `https://a.example`")
	assert.Contains(t, body["text"], "Bounty estimate: $2000")
}

func TestSlackSink_NonSuccessIsStatusError(t *testing.T) {
	t.Parallel()
	var c captured
	s := NewSlackSink(SlackConfig{WebhookURL: "https://hooks.slack.test/x"}, c.client(http.StatusInternalServerError))
	err := s.Send(context.Background(), criticalAlert())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.Status)
	assert.Equal(t, "slack", se.Sink)
}

func TestSlackSink_StatusErrorBodyStaysValidUTF8(t *testing.T) {
	t.Parallel()
	// "é" is two bytes, so a 200-byte cut of this body lands mid-character.
	body := "x" + strings.Repeat("é", 300)
	wc := &testutil.DummyWebClient{Handler: func(*webclient.Request) (*webclient.Response, error) {
		return &webclient.Response{StatusCode: http.StatusBadGateway, Body: []byte(body)}, nil
	}}
	s := NewSlackSink(SlackConfig{WebhookURL: "https://hooks.slack.test/x"}, wc)

	var se *StatusError
	require.ErrorAs(t, s.Send(context.Background(), criticalAlert()), &se)
	assert.True(t, utf8.ValidString(se.Body), "body %q", se.Body)
	assert.Equal(t, 200, utf8.RuneCountInString(se.Body))
	assert.True(t, utf8.ValidString(se.Error()))
}

func TestBuild(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{}
	assert.Empty(t, Build(DefaultConfig(), wc))

	cfg := DefaultConfig()
	cfg.Discord.WebhookURL = "https://d"
	cfg.Telegram.BotToken = "t"
	cfg.Slack.WebhookURL = "https://s"
	var names []string
	for _, s := range Build(cfg, wc) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"discord", "slack"}, names, "telegram needs a chat id")
	assert.Zero(t, wc.RequestCount())
}

func TestSeverityLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CRITICAL", SeverityLabel(8))
	assert.Equal(t, "HIGH", SeverityLabel(6))
	assert.Equal(t, "MEDIUM", SeverityLabel(4))
	assert.Equal(t, "LOW", SeverityLabel(1))
}
