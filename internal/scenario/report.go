package scenario

import (
	"context"
	"fmt"
	"io"
	"time"
)

// WriteResult prints a scenario's steps as PASS/FAIL lines.
func WriteResult(w io.Writer, s *Scenario, result *Result) {
	fmt.Fprintf(w, "\n--- %s ---\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(w, "    %s\n", s.Description)
	}
	fmt.Fprintln(w)

	for _, sr := range result.Steps {
		if sr.Passed {
			fmt.Fprintf(w, "  PASS  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  FAIL  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "        %s\n", sr.Error)
	}

	label := "PASSED"
	if !result.Passed {
		label = "FAILED"
	}
	fmt.Fprintf(w, "\n  Scenario: %s (%s)\n", label, result.Duration.Round(time.Millisecond))
}

// Totals counts steps across scenario runs.
type Totals struct {
	Passed int
	Failed int
}

// RunAll runs each scenario in order and prints its result to w. A scenario
// that cannot run counts as one failed step.
func RunAll(ctx context.Context, r *Runner, scenarios []*Scenario, w io.Writer) Totals {
	var t Totals
	for _, s := range scenarios {
		result, err := r.Run(ctx, s)
		if err != nil {
			fmt.Fprintf(w, "\n  ERROR running %s: %v\n", s.Name, err)
			t.Failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		WriteResult(w, s, result)
		for _, st := range result.Steps {
			if st.Passed {
				t.Passed++
			} else {
				t.Failed++
			}
		}
	}
	fmt.Fprintf(w, "\nResults: %d passed, %d failed, %d total\n", t.Passed, t.Failed, t.Passed+t.Failed)
	return t
}
