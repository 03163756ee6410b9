package scanner

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/hunter/internal/testutil"
	"github.com/raysh454/hunter/internal/webclient"
)

// ─── SurfaceAdapter ────────────────────────────────────────────────────

const loginPage = `<html><body>
<form method="post" action="/login">
  <input name="user"><input type="password" name="pass">
</form>
<form method="post" action="/comment">
  <input type="hidden" name="csrf_token" value="x"><textarea name="body"></textarea>
</form>
<script>var a = 1;</script>
<script src="http://cdn.example.org/lib.js"></script>
</body></html>`

func TestSurfaceAdapter_ReportsWeaknesses(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: func(req *webclient.Request) (*webclient.Response, error) {
		h := http.Header{}
		h.Set("Content-Type", "text/html")
		h.Set("Server", "nginx/1.18.0")
		h.Add("Set-Cookie", "session=abc; Path=/")
		return &webclient.Response{StatusCode: 200, Headers: h, Body: []byte(loginPage)}, nil
	}}
	a := NewSurfaceAdapter("surface", wc)

	out, err := a.Scan(context.Background(), "https://shop.example.com")
	require.NoError(t, err)

	for _, want := range []string{
		"csp-missing", "clickjacking", "hsts-missing", "version-disclosure",
		"cookie session missing Secure, HttpOnly, SameSite", "csrf-token-missing",
		"mixed-content-script", "1 inline script blocks",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "csrf-token-missing"), "the comment form carries a token")

	again, err := a.Scan(context.Background(), "https://shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, out, again, "output must be deterministic")
}

func TestSurfaceAdapter_CleartextPassword(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	obs, err := Inspect("http://a.example", &webclient.Response{
		Headers: h,
		Body:    []byte(`<form action="/login"><input type="password" name="p"></form>`),
	})
	require.NoError(t, err)

	var ids []string
	for _, o := range obs {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, "cleartext-password")
	assert.Contains(t, ids, "password-in-query")
	assert.NotContains(t, ids, "hsts-missing", "hsts only applies to https")
}

func TestSurfaceAdapter_FetchError(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{FailURLs: map[string]bool{"https://down.example": true}}
	_, err := NewSurfaceAdapter("surface", wc).Scan(context.Background(), "https://down.example")
	assert.Error(t, err)
}

// ─── BurpAdapter ───────────────────────────────────────────────────────

func TestBurpAdapter_PollsUntilSucceeded(t *testing.T) {
	t.Parallel()
	polls := 0
	wc := &testutil.DummyWebClient{Handler: func(req *webclient.Request) (*webclient.Response, error) {
		switch {
		case req.Method == http.MethodPost && req.URL == "http://burp:1337/key/v0.1/scan":
			h := http.Header{}
			h.Set("Location", "7")
			return &webclient.Response{StatusCode: http.StatusCreated, Headers: h}, nil
		case req.URL == "http://burp:1337/key/v0.1/scan/7":
			polls++
			if polls < 2 {
				return &webclient.Response{StatusCode: 200, Body: []byte(`{"scan_status":"auditing"}`)}, nil
			}
			return &webclient.Response{StatusCode: 200, Body: []byte(`{"scan_status":"succeeded","issue_events":[
				{"issue":{"name":"SQL injection","severity":"high","confidence":"firm","origin":"https://a.example","path":"/q"}},
				{"issue":{"name":"Cookie without HttpOnly","severity":"low","confidence":"certain","origin":"https://a.example","path":"/"}}
			]}`)}, nil
		}
		return &webclient.Response{StatusCode: 404}, nil
	}}
	a := NewBurpAdapter("burp", "http://burp:1337/", "key", time.Millisecond, wc)

	out, err := a.Scan(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "[high/firm] SQL injection at https://a.example/q\n[low/certain] Cookie without HttpOnly at https://a.example/", out)
	assert.Equal(t, 2, polls)
}

func TestBurpAdapter_TaskFailed(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: func(req *webclient.Request) (*webclient.Response, error) {
		if req.Method == http.MethodPost {
			h := http.Header{}
			h.Set("Location", "1")
			return &webclient.Response{StatusCode: 201, Headers: h}, nil
		}
		return &webclient.Response{StatusCode: 200, Body: []byte(`{"scan_status":"failed"}`)}, nil
	}}
	_, err := NewBurpAdapter("burp", "http://burp", "", time.Millisecond, wc).Scan(context.Background(), "https://a.example")
	assert.ErrorContains(t, err, "failed")
}

// ─── Build ─────────────────────────────────────────────────────────────

func TestBuild(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{}
	adapters, err := Build([]AdapterConfig{
		{Name: "surface", Type: TypeSurface},
		{Name: "nuclei", Type: TypeCommand, Command: "nuclei"},
		{Name: "off", Type: TypeCommand, Command: "x", Disabled: true},
		{Name: "burp", Type: TypeBurp, Endpoint: "http://127.0.0.1:1337"},
	}, wc, &testutil.DummyLogger{})
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.IsType(t, &SurfaceAdapter{}, adapters[0])
	assert.IsType(t, &CommandAdapter{}, adapters[1])
	assert.IsType(t, &BurpAdapter{}, adapters[2])

	_, err = Build([]AdapterConfig{{Name: "x", Type: "telepathy"}}, wc, &testutil.DummyLogger{})
	assert.Error(t, err)
	_, err = Build([]AdapterConfig{{Name: "x", Type: TypeSurface}, {Name: "x", Type: TypeSurface}}, wc, &testutil.DummyLogger{})
	assert.Error(t, err)
	_, err = Build([]AdapterConfig{{Name: "c", Type: TypeCommand}}, wc, &testutil.DummyLogger{})
	assert.Error(t, err)
}
