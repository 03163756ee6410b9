package labsite

// Posture selects which variant of every page the lab serves.
type Posture string

const (
	// PostureWeak serves pages with the usual misconfigurations.
	PostureWeak Posture = "weak"
	// PostureHardened serves the same pages with the fixes applied.
	PostureHardened Posture = "hardened"
)

// Valid reports whether p is a known posture.
func (p Posture) Valid() bool {
	return p == PostureWeak || p == PostureHardened
}

// Variant is one rendering of a page.
type Variant struct {
	HTML        string
	ContentType string
	Headers     map[string]string
	Cookies     []Cookie
}

// Cookie is a cookie set by a page.
type Cookie struct {
	Name     string
	Value    string
	HttpOnly bool
	Secure   bool
	SameSite string // "Strict", "Lax", "None" or ""
}

// Page is a path with one variant per posture.
type Page struct {
	Path        string
	Description string
	Variants    map[Posture]Variant
}

var hardenedHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'self'; frame-ancestors 'none'",
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
}

const nav = `<nav><a href="/">Home</a> | <a href="/login">Login</a> | <a href="/account">Account</a> | <a href="/api/me">API</a></nav>`

// Pages returns every page the lab serves.
func Pages() []Page {
	return []Page{
		{
			Path:        "/",
			Description: "Landing page linking to the rest of the site",
			Variants: map[Posture]Variant{
				PostureWeak: {
					HTML: `<!DOCTYPE html><html><head><title>Lab</title>
<script>window.lab = true;</script></head>
<body><h1>Lab</h1>` + nav + `</body></html>`,
					Headers: map[string]string{"Server": "nginx/1.18.0", "X-Powered-By": "PHP/7.4.3"},
					Cookies: []Cookie{{Name: "visitor", Value: "1"}},
				},
				PostureHardened: {
					HTML: `<!DOCTYPE html><html><head><title>Lab</title>
<script src="/static/app.js"></script></head>
<body><h1>Lab</h1>` + nav + `</body></html>`,
					Headers: hardenedHeaders,
					Cookies: []Cookie{{Name: "visitor", Value: "1", HttpOnly: true, Secure: true, SameSite: "Lax"}},
				},
			},
		},
		{
			Path:        "/login",
			Description: "Login form",
			Variants: map[Posture]Variant{
				PostureWeak: {
					HTML: `<!DOCTYPE html><html><head><title>Login</title></head><body>` + nav + `
<form method="GET" action="/login">
  <input type="text" name="username">
  <input type="password" name="password">
  <button type="submit">Sign in</button>
</form></body></html>`,
				},
				PostureHardened: {
					HTML: `<!DOCTYPE html><html><head><title>Login</title></head><body>` + nav + `
<form method="POST" action="/login">
  <input type="hidden" name="csrf_token" value="lab">
  <input type="text" name="username">
  <input type="password" name="password">
  <button type="submit">Sign in</button>
</form></body></html>`,
					Headers: hardenedHeaders,
				},
			},
		},
		{
			Path:        "/account",
			Description: "Account settings with a session cookie",
			Variants: map[Posture]Variant{
				PostureWeak: {
					HTML: `<!DOCTYPE html><html><head><title>Account</title></head><body>` + nav + `
<form method="POST" action="/account">
  <input type="email" name="email">
  <button type="submit">Save</button>
</form>
<form method="POST" action="https://collector.example.net/feedback">
  <textarea name="feedback"></textarea>
</form></body></html>`,
					Cookies: []Cookie{{Name: "session", Value: "lab-session"}},
				},
				PostureHardened: {
					HTML: `<!DOCTYPE html><html><head><title>Account</title></head><body>` + nav + `
<form method="POST" action="/account">
  <input type="hidden" name="csrf_token" value="lab">
  <input type="email" name="email">
  <button type="submit">Save</button>
</form></body></html>`,
					Headers: hardenedHeaders,
					Cookies: []Cookie{{Name: "session", Value: "lab-session", HttpOnly: true, Secure: true, SameSite: "Strict"}},
				},
			},
		},
		{
			Path:        "/api/me",
			Description: "JSON endpoint",
			Variants: map[Posture]Variant{
				PostureWeak: {
					HTML:        `{"user":"lab","role":"admin"}`,
					ContentType: "application/json",
					Headers: map[string]string{
						"Access-Control-Allow-Origin":      "*",
						"Access-Control-Allow-Credentials": "true",
					},
				},
				PostureHardened: {
					HTML:        `{"user":"lab","role":"admin"}`,
					ContentType: "application/json",
					Headers:     map[string]string{"X-Content-Type-Options": "nosniff"},
				},
			},
		},
	}
}
