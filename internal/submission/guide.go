package submission

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/raysh454/hunter/internal/model"
)

const defaultGuide = `Manual submission guide for {{ .Target.Platform | default "the platform" | title }}
{{ if .Target.Program }}Program: {{ .Target.Program }}
{{ end }}
1. Log in to {{ .Target.Platform | default "the platform" | title }} and open the program's "Submit report" page.
2. Title: {{ .Title }}
3. Asset: {{ .Asset }}
4. Severity: {{ .Severity }}{{ with .Bounty }} (estimated bounty ${{ . }}){{ end }}
5. Description:
{{ .Findings.Verdict | indent 3 }}
6. Evidence (attach the scanner output below):
{{ .Findings.CombinedText | trunc 4000 | indent 3 }}
7. Before sending, reproduce the issue manually and remove anything out of scope.
`

// GuideSink renders a step-by-step manual submission guide.
type GuideSink struct {
	tmpl *template.Template
}

// NewGuideSink parses text, or the built-in guide when text is empty.
func NewGuideSink(text string) (*GuideSink, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultGuide
	}
	tmpl, err := template.New("guide").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse guide template: %w", err)
	}
	return &GuideSink{tmpl: tmpl}, nil
}

func (g *GuideSink) Name() string { return "guide" }

type guideData struct {
	*model.Report
	Severity string
	Bounty   string
}

func (g *GuideSink) Submit(ctx context.Context, r *model.Report) (model.SubmissionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return model.SubmissionOutcome{}, err
	}
	data := guideData{Report: r, Severity: SeverityRating(r.Findings.PriorityScore)}
	if v := r.Findings.BountyEstimate; v != nil {
		data.Bounty = fmt.Sprintf("%.0f", *v)
	}
	var b strings.Builder
	if err := g.tmpl.Execute(&b, data); err != nil {
		return model.SubmissionOutcome{}, fmt.Errorf("render guide for %s: %w", r.ID, err)
	}
	return model.SubmissionOutcome{
		Kind: model.SubmissionManualGuide,
		Sink: g.Name(),
		Note: b.String(),
	}, nil
}
