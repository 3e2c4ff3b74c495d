package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a list of run results as human-readable text.
func FormatText(results []*RunResult) string {
	var b strings.Builder

	total := len(results)
	fmt.Fprintf(&b, "Running %d scenario", total)
	if total != 1 {
		b.WriteString("s")
	}
	b.WriteString("...\n\n")

	totalSteps := 0
	totalPassed := 0
	failedScenarios := 0

	for _, r := range results {
		totalSteps += r.Total
		totalPassed += r.Passed

		status := "PASS"
		if r.Failed > 0 {
			status = "FAIL"
			failedScenarios++
		}
		fmt.Fprintf(&b, "  %s  %s (%d/%d) final state %s\n", status, r.Name, r.Passed, r.Total, r.FinalState)

		for _, s := range r.Steps {
			line := fmt.Sprintf("step %d: %-9s", s.Index, s.Op)
			if s.Channel != "" {
				line += " " + s.Channel
			}
			switch {
			case s.Decision != nil:
				line += fmt.Sprintf(" -> %s %s target=%d", s.Decision.Action, s.Decision.Reason, s.Decision.Target)
			case s.Validated != nil:
				line += fmt.Sprintf(" -> validated=%t", *s.Validated)
			}
			line += fmt.Sprintf(" [%s]", s.State)

			mark := "ok  "
			if !s.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&b, "    %s %s\n", mark, line)
			for _, f := range s.Failures {
				fmt.Fprintf(&b, "           %s\n", f)
			}
		}
	}

	fmt.Fprintf(&b, "\n%d of %d steps passed.", totalPassed, totalSteps)
	if failedScenarios > 0 {
		fmt.Fprintf(&b, " %d of %d scenarios failed.", failedScenarios, total)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders run results as JSON.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}
