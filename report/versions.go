package report

import (
	"slices"
	"strings"
)

// FormatVersions compresses the members' version labels into ranges.
//
// Members are ordered by Index. Runs of consecutive indices longer than two
// collapse to "first -- last"; shorter runs list every label. Runs and
// labels are joined with commas.
func FormatVersions(members []Member) string {
	if len(members) == 0 {
		return ""
	}

	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b Member) int { return a.Index - b.Index })

	var parts []string
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Index == sorted[i-1].Index+1 {
			continue
		}
		parts = append(parts, formatRun(sorted[start:i]))
		start = i
	}
	return strings.Join(parts, ",")
}

func formatRun(run []Member) string {
	if len(run) > 2 {
		return run[0].Version + " -- " + run[len(run)-1].Version
	}
	labels := make([]string, len(run))
	for i, m := range run {
		labels[i] = m.Version
	}
	return strings.Join(labels, ",")
}
