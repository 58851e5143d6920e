package suite

import (
	"fmt"
	"io"
	"time"
)

// WriteReport prints one PASS/FAIL line per step followed by a summary.
func WriteReport(w io.Writer, result *Result) {
	fmt.Fprintf(w, "\n--- story suite against %s ---\n\n", result.BaseURL)

	for _, sr := range result.Steps {
		if sr.Passed {
			fmt.Fprintf(w, "  PASS  %-45s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "  FAIL  %-45s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
			fmt.Fprintf(w, "        %s\n", sr.Error)
		}
	}

	failed := result.Failed()
	fmt.Fprintf(w, "\n  Suite: %s\n", PassFailLabel(result.Passed))
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d total (%s)\n",
		len(result.Steps)-failed, failed, len(result.Steps), result.Duration.Round(time.Millisecond))
}

// PassFailLabel renders a boolean outcome.
func PassFailLabel(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}
