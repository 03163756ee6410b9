package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
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

var fastPolicy = retry.Policy{MaxRetries: 2, Base: 2, Unit: time.Millisecond}

func sampleReport(platform string) *model.Report {
	bounty := 750.0
	return &model.Report{
		ID:     "r-1",
		Asset:  "https://shop.acme.com",
		Target: model.Target{Platform: platform, Program: "acme", Scope: "*.acme.com", Priority: 8},
		Title:  "Stored XSS in comments",
		Status: model.ReportPending,
		Findings: model.AggregatedFindings{
			CombinedText:   "## burp Output\n[high/firm] XSS at https://shop.acme.com/c",
			Verdict:        "Stored XSS in comments\nSession theft possible",
			PriorityScore:  7,
			BountyEstimate: &bounty,
		},
	}
}

func TestGuideSink_Renders(t *testing.T) {
	t.Parallel()
	g, err := NewGuideSink("")
	require.NoError(t, err)

	out, err := g.Submit(context.Background(), sampleReport("bugcrowd"))
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionManualGuide, out.Kind)
	assert.Equal(t, "guide", out.Sink)
	for _, want := range []string{
		"Manual submission guide for Bugcrowd",
		"Program: acme",
		"Title: Stored XSS in comments",
		"Severity: high (estimated bounty $750)",
		"   Session theft possible",
	} {
		assert.Contains(t, out.Note, want)
	}

	_, err = NewGuideSink("{{ .Broken ")
	assert.Error(t, err)
}

func TestHackerOneSink_Submit(t *testing.T) {
	t.Parallel()
	var got h1Report
	var auth string
	wc := &testutil.DummyWebClient{Handler: func(req *webclient.Request) (*webclient.Response, error) {
		assert.Equal(t, "https://h1.test/v1/hackers/reports", req.URL)
		auth = req.Headers.Get("Authorization")
		require.NoError(t, json.Unmarshal(req.Body, &got))
		return &webclient.Response{StatusCode: http.StatusCreated, Body: []byte(`{"data":{"id":"1337","type":"report"}}`)}, nil
	}}
	sink := NewHackerOneSink(HackerOneConfig{APIURL: "https://h1.test/v1/", Username: "me", Token: "tok"}, wc)

	out, err := sink.Submit(context.Background(), sampleReport("hackerone"))
	require.NoError(t, err)
	assert.Equal(t, "1337", out.Reference)
	assert.Equal(t, model.SubmissionAutomated, out.Kind)
	assert.Equal(t, "Basic bWU6dG9r", auth)
	assert.Equal(t, "acme", got.Data.Attributes.TeamHandle)
	assert.Equal(t, "high", got.Data.Attributes.SeverityRating)
	assert.True(t, strings.HasPrefix(got.Data.Attributes.VulnerabilityInformation, "Asset: https://shop.acme.com"))
}

func TestHackerOneSink_StatusErrorBodyStaysValidUTF8(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("ошибка ", 100)
	wc := &testutil.DummyWebClient{Handler: func(*webclient.Request) (*webclient.Response, error) {
		return &webclient.Response{StatusCode: http.StatusServiceUnavailable, Body: []byte(body)}, nil
	}}
	sink := NewHackerOneSink(HackerOneConfig{Token: "t"}, wc)

	_, err := sink.Submit(context.Background(), sampleReport("hackerone"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body), "body %q", se.Body)
	assert.Equal(t, 300, utf8.RuneCountInString(se.Body))
}

func TestSubmitter_UndecodableSuccessIsNotRetried(t *testing.T) {
	t.Parallel()
	calls := 0
	wc := &testutil.DummyWebClient{Handler: func(*webclient.Request) (*webclient.Response, error) {
		calls++
		return &webclient.Response{StatusCode: http.StatusCreated, Body: []byte(`<html>created</html>`)}, nil
	}}
	s := NewSubmitter(NewRegistry(NewHackerOneSink(HackerOneConfig{Token: "t"}, wc)), fastPolicy, &testutil.DummyLogger{})

	_, attempts, err := s.Submit(context.Background(), sampleReport("hackerone"))
	assert.ErrorIs(t, err, ErrUnreadableResponse)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls, "a 2xx means the platform already created the report")
}

func TestRegistry_FallsBackToGuide(t *testing.T) {
	t.Parallel()
	reg, err := Build(Config{HackerOne: HackerOneConfig{Token: "t"}}, &testutil.DummyWebClient{})
	require.NoError(t, err)
	assert.Equal(t, "hackerone", reg.For("HackerOne").Name())
	assert.Equal(t, "guide", reg.For("intigriti").Name())
	assert.Equal(t, "guide", reg.For("").Name())

	reg, err = Build(DefaultConfig(), &testutil.DummyWebClient{})
	require.NoError(t, err)
	assert.Equal(t, "guide", reg.For("hackerone").Name(), "no token, no automation")
}

func TestSubmitter_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	sink := &testutil.DummySubmissionSink{SinkName: "h1", FailTimes: 2, Outcome: model.SubmissionOutcome{Reference: "9"}}
	reg := NewRegistry(sink)
	s := NewSubmitter(reg, fastPolicy, &testutil.DummyLogger{})

	out, attempts, err := s.Submit(context.Background(), sampleReport("x"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "9", out.Reference)
}

func TestSubmitter_Exhausts(t *testing.T) {
	t.Parallel()
	sink := &testutil.DummySubmissionSink{SinkName: "h1", AlwaysFail: true}
	s := NewSubmitter(NewRegistry(sink), fastPolicy, &testutil.DummyLogger{})

	_, attempts, err := s.Submit(context.Background(), sampleReport("x"))
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, sink.Calls)
}

func TestSubmitter_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	calls := 0
	wc := &testutil.DummyWebClient{Handler: func(*webclient.Request) (*webclient.Response, error) {
		calls++
		return &webclient.Response{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"errors":["bad team"]}`)}, nil
	}}
	reg := NewRegistry(NewHackerOneSink(HackerOneConfig{Token: "t"}, wc))
	s := NewSubmitter(reg, fastPolicy, &testutil.DummyLogger{})

	_, attempts, err := s.Submit(context.Background(), sampleReport("hackerone"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestSeverityRating(t *testing.T) {
	t.Parallel()
	for p, want := range map[int]string{0: "none", 2: "low", 5: "medium", 8: "high", 10: "critical"} {
		assert.Equal(t, want, SeverityRating(p))
	}
}
