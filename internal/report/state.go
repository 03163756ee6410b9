// Package report owns the report lifecycle: creation, the status state
// machine, persistence of transitions and YAML export.
package report

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raysh454/hunter/internal/model"
)

// Event drives a report transition.
type Event string

const (
	EventSubmitSucceeded Event = "submit_succeeded"
	EventSubmitExhausted Event = "submit_exhausted"
)

var (
	// ErrTerminal is returned for any event applied to a terminal report.
	ErrTerminal = errors.New("report is in a terminal state")

	// ErrInvalidTransition is returned for unknown states or events.
	ErrInvalidTransition = errors.New("invalid report transition")
)

// DefaultCriticalThreshold is the priority at which a report opens as critical.
const DefaultCriticalThreshold = 8

// InitialStatus is critical when priority reaches threshold, else pending.
func InitialStatus(priority, threshold int) model.ReportStatus {
	if priority >= threshold {
		return model.ReportCritical
	}
	return model.ReportPending
}

// Next returns the state reached from `from` on ev.
//
//	pending|critical --submit_succeeded--> submitted
//	pending|critical --submit_exhausted--> submission_failed
func Next(from model.ReportStatus, ev Event) (model.ReportStatus, error) {
	if from.Terminal() {
		return from, fmt.Errorf("%w: %s on %s", ErrTerminal, ev, from)
	}
	if from != model.ReportPending && from != model.ReportCritical {
		return from, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, from)
	}
	switch ev {
	case EventSubmitSucceeded:
		return model.ReportSubmitted, nil
	case EventSubmitExhausted:
		return model.ReportSubmissionFailed, nil
	default:
		return from, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
}

const maxTitleRunes = 100

// Title is the first non-empty line of the verdict, cut to 100 runes.
func Title(verdict string) string {
	for line := range strings.Lines(verdict) {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#*-> "))
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxTitleRunes {
			r := []rune(line)
			line = strings.TrimSpace(string(r[:maxTitleRunes-1])) + "…"
		}
		return line
	}
	return "Security findings"
}
