package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/raysh454/hunter/internal/alert"
	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/model"
)

var (
	primary = lipgloss.Color("#7D56F4")
	muted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(primary).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(16)

	valueStyle = lipgloss.NewStyle().Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF3838")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// severityStyle colours a severity label from alert.SeverityLabel.
func severityStyle(label string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch label {
	case "CRITICAL":
		return base.Foreground(lipgloss.Color("#FF0000"))
	case "HIGH":
		return base.Foreground(lipgloss.Color("#FF6B6B"))
	case "MEDIUM":
		return base.Foreground(lipgloss.Color("#FFD93D"))
	default:
		return base.Foreground(lipgloss.Color("#6BCB77"))
	}
}

func statusStyle(s model.ReportStatus) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch s {
	case model.ReportSubmitted:
		return base.Foreground(lipgloss.Color("#00D26A"))
	case model.ReportSubmissionFailed:
		return base.Foreground(lipgloss.Color("#FF3838"))
	case model.ReportCritical:
		return base.Foreground(lipgloss.Color("#FFB800")).Bold(true)
	default:
		return base.Foreground(muted)
	}
}

func kv(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+valueStyle.Render(value))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func renderStatus(w io.Writer, st model.CycleStatus) {
	fmt.Fprintln(w, titleStyle.Render("Cycle"))
	kv(w, "phase", string(st.Phase))
	if st.CycleID == "" {
		kv(w, "cycle", "none yet")
		return
	}
	kv(w, "cycle", st.CycleID)
	if st.Target != nil {
		kv(w, "target", fmt.Sprintf("%s/%s %s", st.Target.Platform, st.Target.Program, st.Target.Scope))
	}
	kv(w, "assets", fmt.Sprintf("%d/%d", st.AssetsDone, st.AssetsTotal))
	kv(w, "started", formatTime(st.StartedAt))
	kv(w, "finished", formatTime(st.FinishedAt))
	if st.LastError != "" {
		fmt.Fprintln(w, labelStyle.Render("last error")+errorStyle.Render(st.LastError))
	}
}

func renderStats(w io.Writer, counters model.Counters, dedupDegraded bool) {
	fmt.Fprintln(w, titleStyle.Render("Counters"))
	for _, name := range model.CounterNames {
		kv(w, strings.ReplaceAll(name, "_", " "), strconv.FormatInt(counters[name], 10))
	}
	if dedupDegraded {
		fmt.Fprintln(w, labelStyle.Render("dedup")+errorStyle.Render("DEGRADED (fingerprint store unreadable)"))
	}
}

func renderJob(w io.Writer, job app.Job) {
	fmt.Fprintln(w, titleStyle.Render("Job"))
	kv(w, "id", job.ID)
	kv(w, "status", string(job.Status))
	if job.Target != nil {
		kv(w, "target", job.Target.Scope)
	}
	kv(w, "started", formatTime(job.StartedAt))
}

func renderReports(w io.Writer, reports []*model.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(muted).Italic(true).Render("no reports"))
		return
	}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			alert.SeverityLabel(r.Findings.PriorityScore),
			string(r.Status),
			string(r.Asset),
			r.Title,
			formatTime(r.CreatedAt),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(muted)).
		Headers("ID", "SEVERITY", "STATUS", "ASSET", "TITLE", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			switch col {
			case 1:
				return severityStyle(rows[row][1]).Padding(0, 1)
			case 2:
				return statusStyle(model.ReportStatus(rows[row][2])).Padding(0, 1)
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}
