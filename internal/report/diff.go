package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/hunter/internal/model"
)

const maxSummaryLines = 20

// ChangeSummary describes how cur differs from the previous report for the
// same asset: a priority change and the added and removed finding lines.
func ChangeSummary(prev *model.Report, cur *model.AggregatedFindings) string {
	if prev == nil {
		return "first report for this asset"
	}

	var b strings.Builder
	if p := prev.Findings.PriorityScore; p != cur.PriorityScore {
		fmt.Fprintf(&b, "priority %d -> %d\n", p, cur.PriorityScore)
	}

	dmp := diffmatchpatch.New()
	a, bb, lines := dmp.DiffLinesToChars(prev.Findings.CombinedText, cur.CombinedText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, bb, false), lines)

	written := 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for line := range strings.Lines(d.Text) {
			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if written == maxSummaryLines {
				b.WriteString("...\n")
				return strings.TrimRight(b.String(), "\n")
			}
			b.WriteString(prefix + line + "\n")
			written++
		}
	}
	if b.Len() == 0 {
		return "no textual change since report " + prev.ID
	}
	return strings.TrimRight(b.String(), "\n")
}
