package invoker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// revisionPattern matches the "(2024-01-01T00:00:00Z master 1a2b3c)" part
// of a development build's version banner.
var revisionPattern = regexp.MustCompile(`\((\d+-\d+-\d+[\w\d:]*) +\S+ +([[:xdigit:]]+)\)`)

// DetectRevision labels a single development interpreter by the revision
// and date reported by "<interpreter> -v".
func DetectRevision(ctx context.Context, interpreter, workdir string) (string, error) {
	cmd := exec.CommandContext(ctx, interpreter, "-v")
	cmd.Dir = workdir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to query %s version: %w", interpreter, err)
	}

	return RevisionLabel(out.String()), nil
}

// RevisionLabel formats a version banner as "<revision> (<date>)". Banners
// without a revision fall back to their first line.
func RevisionLabel(banner string) string {
	if m := revisionPattern.FindStringSubmatch(banner); m != nil {
		return m[2] + " (" + m[1] + ")"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(banner), "\n")
	return line
}
