package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/giantswarm/llm-optimizer/internal/measure"
	"github.com/giantswarm/llm-optimizer/internal/runner"
)

// ConsoleReporter writes human-readable reports to a terminal.
type ConsoleReporter struct {
	w io.Writer
	// ShowDiff includes the full diff in winner cards.
	ShowDiff bool
}

// NewConsoleReporter creates a reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w, ShowDiff: true}
}

// ReportWinner prints a card for an accepted candidate.
func (c *ConsoleReporter) ReportWinner(_ context.Context, w runner.Winner) error {
	stats, err := ParseDiffStats(w.Diff)
	if err != nil {
		return err
	}

	state := "applied to the source tree"
	if !w.Applied {
		state = "reverted after reporting"
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s: %s is %.1f%% faster", w.FunctionID, w.CandidateID, w.Speedup*100)),
		fmt.Sprintf("runtime  %s → %s", measure.HumanizeRuntime(w.BaselineRuntimeNS), measure.HumanizeRuntime(w.RuntimeNS)),
		fmt.Sprintf("changes  %s (%s)", stats, state),
		mutedStyle.Render(fmt.Sprintf("tests    %s  trace %s", w.ReferenceReport, w.TraceID)),
	}
	if w.Explanation != "" {
		lines = append(lines, "", w.Explanation)
	}

	if _, err := fmt.Fprintln(c.w, cardStyle.Render(strings.Join(lines, "\n"))); err != nil {
		return err
	}
	if c.ShowDiff && w.Diff != "" {
		if _, err := fmt.Fprintln(c.w, colorizeDiff(w.Diff)); err != nil {
			return err
		}
	}
	return nil
}

// RenderRun writes the outcome table and the measurement table of a run.
func (c *ConsoleReporter) RenderRun(run *runner.Run) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s", run.ID)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("job %s, %d function(s), %s", run.Job, len(run.Outcomes), run.Duration)))
	if run.Cancelled {
		b.WriteString(warningStyle.Render("  (cancelled)"))
	}
	b.WriteString("\n\n")

	outcomes := [][]string{{"FUNCTION", "STATUS", "WINNER", "BASELINE", "BEST", "SPEEDUP", "REASON"}}
	for _, o := range run.Outcomes {
		row := []string{o.FunctionID, string(o.Status), dash(o.WinnerID), runtimeCell(o.BaselineRuntimeNS), runtimeCell(o.WinnerRuntimeNS), "-", dash(o.Reason)}
		if o.Accepted {
			row[5] = fmt.Sprintf("%.1f%%", o.Speedup*100)
		}
		outcomes = append(outcomes, row)
	}
	b.WriteString(renderTable(outcomes, statusColumn))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Measurements"))
	b.WriteString("\n")
	b.WriteString(renderTable(MeasurementRows(run), -1))
	b.WriteString("\n")

	_, err := fmt.Fprint(c.w, b.String())
	return err
}

// MeasurementRows returns the per-phase measurement table of a run,
// header first. Statistics cover valid trials only.
func MeasurementRows(run *runner.Run) [][]string {
	rows := [][]string{{"FUNCTION", "PHASE", "TRIALS", "MIN", "MEAN", "STDDEV", "VERDICT"}}
	for _, o := range run.Outcomes {
		if o.BaselineStats.Trials > 0 {
			rows = append(rows, statsRow(o.FunctionID, "baseline", o.BaselineStats, "-"))
		}
		for _, c := range o.PerCandidate {
			if c.Skipped {
				continue
			}
			verdict := string(c.Verdict)
			if c.Reason != "" {
				verdict += " (" + c.Reason + ")"
			}
			if c.ID == o.WinnerID {
				verdict += " *"
			}
			rows = append(rows, statsRow(o.FunctionID, c.ID, c.Stats, verdict))
		}
	}
	return rows
}

func statsRow(fn, phase string, s measure.Summary, verdict string) []string {
	if s.Trials == 0 {
		return []string{fn, phase, "0", "-", "-", "-", verdict}
	}
	return []string{
		fn,
		phase,
		fmt.Sprintf("%d", s.Trials),
		measure.HumanizeRuntime(s.MinNS),
		measure.HumanizeRuntime(int64(s.MeanNS)),
		measure.HumanizeRuntime(int64(s.StdDevNS)),
		verdict,
	}
}

const statusColumn = 1

func renderTable(rows [][]string, colorColumn int) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = headerStyle.Width(widths[i] + 2)
			} else if i == colorColumn {
				style = style.Inherit(statusStyle(runner.Status(cell)))
			}
			cells[i] = style.Render(cell)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

func statusStyle(s runner.Status) lipgloss.Style {
	switch s {
	case runner.StatusAccepted:
		return successStyle
	case runner.StatusRejectedAllCandidates, runner.StatusSkipped:
		return warningStyle
	case runner.StatusAbortedNoBaseline, runner.StatusError:
		return errorStyle
	}
	return lipgloss.NewStyle()
}

func colorizeDiff(d string) string {
	lines := strings.Split(strings.TrimRight(d, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = mutedStyle.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = addedStyle.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = removedStyle.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func runtimeCell(ns int64) string {
	if ns <= 0 {
		return "-"
	}
	return measure.HumanizeRuntime(ns)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
