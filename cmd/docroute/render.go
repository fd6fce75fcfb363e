package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"docroute/internal/domain"
	"docroute/internal/usecase"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}

	styleBold    = lipgloss.NewStyle().Bold(true)
	styleDim     = lipgloss.NewStyle().Faint(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
)

const wrapWidth = 100

// renderer turns an AnswerResponse into terminal output.
type renderer struct {
	md    *glamour.TermRenderer
	trace bool
}

func newRenderer(trace bool) *renderer {
	r := &renderer{trace: trace}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err == nil {
		r.md = md
	}
	return r
}

func (r *renderer) markdown(s string) string {
	if r.md == nil {
		return s + "\n"
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}

// Render formats the answer, its citations, and optionally the trace.
func (r *renderer) Render(resp *usecase.AnswerResponse) string {
	var b strings.Builder
	b.WriteString(r.markdown(resp.Answer))

	b.WriteString(confidenceLine(resp))
	b.WriteString("\n")

	if len(resp.Citations) > 0 {
		b.WriteString(styleBold.Render("Sources") + "\n")
		for _, c := range resp.Citations {
			fmt.Fprintf(&b, "  • %s %s\n", c.DocName, styleDim.Render("("+c.DocID+")"))
		}
	}

	if r.trace {
		b.WriteString(styleBold.Render("Trace") + "\n")
		b.WriteString(traceLines(resp))
	}
	return b.String()
}

func confidenceLine(resp *usecase.AnswerResponse) string {
	label := fmt.Sprintf("%s · confidence %.2f", resp.AgentType, resp.Confidence)
	switch {
	case resp.AgentType == domain.AgentTypeError:
		return styleError.Render(label)
	case resp.Confidence >= 0.7:
		return styleSuccess.Render(label)
	case resp.Confidence >= 0.4:
		return styleInfo.Render(label)
	default:
		return styleWarning.Render(label)
	}
}

func traceLines(resp *usecase.AnswerResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  routing: intent=%s agent=%s confidence=%.2f", resp.Routing.Intent, resp.Routing.AgentType, resp.Routing.Confidence)
	if resp.Routing.Fallback {
		b.WriteString(" (fallback)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  plan: primary=%s secondary=%v mode=%s\n", resp.Plan.Primary, resp.Plan.Secondary, resp.Plan.Mode)
	for _, e := range resp.ExecutionTrace {
		status := styleSuccess.Render("ok")
		switch {
		case e.TimedOut:
			status = styleWarning.Render("timeout")
		case !e.Success:
			status = styleError.Render("failed")
		}
		fmt.Fprintf(&b, "  %-9s %-8s %6dms %s\n", e.Kind, e.Agent, e.DurationMs(), status)
	}
	if resp.SkipReason != domain.SkipNone {
		fmt.Fprintf(&b, "  secondaries skipped: %s\n", resp.SkipReason)
	}
	if resp.Consensus != nil {
		fmt.Fprintf(&b, "  consensus: %d of %d insights agreed\n", resp.Consensus.GroupSize, resp.Consensus.TotalInsights)
	}
	if ref := resp.Refinement; ref != nil && ref.Attempted {
		fmt.Fprintf(&b, "  refinement: applied=%t documents=%d keywords=%v\n", ref.Applied, ref.DocumentCount, ref.Keywords)
	}
	return b.String()
}
