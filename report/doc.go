// Package report aggregates interpreter results into a message-ready report.
//
// Results with identical stdout, stderr and exit code are merged into one
// group, and each group's version list is compressed into ranges using the
// results' positions in the concatenated sequence.
//
// Usage:
//
//	rep := report.Format(results)
//	for _, a := range rep.Attachments {
//	    fmt.Println(a.Title)
//	}
package report
