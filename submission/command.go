package submission

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// HelpText is returned for an empty or "help" command. The outer fences
// use fullwidth backticks so the inner ones show literally.
const HelpText = "Usage:\n" +
	"```\n" +
	"@all-ruby -e 'puts \"Hello\"'\n" +
	"```\n" +
	"\uff40\uff40\uff40\n" +
	"@all-ruby\n" +
	"```\n" +
	"puts \"Hello\"\n" +
	"```\n" +
	"\uff40\uff40\uff40\n"

var quoteReplacer = strings.NewReplacer(
	"\u00a0", "",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
)

// normalizeCommand undoes the typographic substitutions chat clients apply
// to typed text: non-breaking spaces are dropped and curly quotes become
// straight quotes.
func normalizeCommand(command string) string {
	return quoteReplacer.Replace(command)
}

// ParseCommand splits a command line into argv with shell quoting rules.
// Variables and backticks are not expanded. Shell operators are rejected
// rather than silently ending the command.
func ParseCommand(command string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(command)
	if err != nil {
		return nil, err
	}

	if p.Position >= 0 {
		runes := []rune(command)
		if p.Position < len(runes) {
			return nil, fmt.Errorf("unexpected %q at offset %d", runes[p.Position], p.Position)
		}
		return nil, fmt.Errorf("unexpected shell operator at offset %d", p.Position)
	}

	return args, nil
}
