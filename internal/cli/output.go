package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/ImShyMike/hcb/internal/engine"
	"github.com/ImShyMike/hcb/internal/fixer"
	"github.com/ImShyMike/hcb/internal/models"
	"golang.org/x/exp/slices"
)

// printReport writes a summary of a run.
func printReport(w io.Writer, r engine.Report) {
	fmt.Fprintf(w, "run %s (%s to %s)\n", r.RunID, r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))

	if len(r.Imports) > 0 {
		fmt.Fprintf(w, "  %-10s %d jobs, %d failed\n", "imports", len(r.Imports), len(r.FailedImports()))
		for _, i := range r.FailedImports() {
			fmt.Fprintf(w, "    %s %s: %v\n", i.Source, i.AccountRef, i.Err)
		}
	}

	fmt.Fprintf(w, "  %-10s %d\n", "hashed", r.Hashed)
	fmt.Fprintf(w, "  %-10s %d created, %d grouped, %d pending, %d skipped\n", "canonical", r.Canonical.Created, r.Canonical.Grouped, r.Canonical.Pending, r.Canonical.Skipped)
	fmt.Fprintf(w, "  %-10s %d settled, %d declined, %d ambiguous\n", "links", r.Links.Settled, r.Links.Declined, r.Links.Ambiguous)
	fmt.Fprintf(w, "  %-10s %d\n", "stamped", r.Stamped)
	fmt.Fprintf(w, "  %-10s %d canonical, %d pending, %d unmapped\n", "mapped", r.Mapped.Mapped, r.Pending.Mapped, r.Mapped.Unmapped)
	fmt.Fprintf(w, "  %-10s %d created, %d deferred, %d downgraded\n", "fees", r.Fees.Created, r.Fees.Deferred, r.Fees.Downgraded)
	printFixes(w, r.Fixes)
	printAnomalyCounts(w, r.Anomalies)
}

func printFixes(w io.Writer, f fixer.Result) {
	fmt.Fprintf(w, "  %-10s %d memos, %d mapped\n", "fixes", f.Memos, f.Mapped)
}

func printAnomalyCounts(w io.Writer, counts map[models.AnomalyKind]int) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)

	fmt.Fprintf(w, "  %-10s", "anomalies")
	if len(kinds) == 0 {
		fmt.Fprint(w, " none")
	}
	for _, k := range kinds {
		fmt.Fprintf(w, " %s=%d", k, counts[models.AnomalyKind(k)])
	}
	fmt.Fprintln(w)
}
