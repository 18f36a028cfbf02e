package report

import (
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/isdmx/allruby/protocol"
)

// NoOutputText replaces the body of a group that printed nothing.
const NoOutputText = "(no stdout :speak_no_evil:)"

// longFormNewlines is the newline count above which a single group is threaded.
const longFormNewlines = 10

// Status markers and colors.
const (
	MarkOK      = ":ok:"
	MarkFailed  = ":x:"
	ColorGood   = "good"
	ColorDanger = "danger"
)

// Member is one result inside a group.
type Member struct {
	Index   int
	Version string
}

// Group holds results that share stdout, stderr and exit code.
type Group struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Members  []Member
}

// Attachment is the rendered form of a group.
type Attachment struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Color    string   `json:"color"`
	Footer   string   `json:"footer,omitempty"`
	MrkdwnIn []string `json:"mrkdwn_in"`

	Versions string `json:"-"`
	ExitCode int    `json:"-"`
	OK       bool   `json:"-"`
}

// Report is the formatted answer to one submission.
type Report struct {
	Attachments []Attachment `json:"attachments"`
	// Notes lists sandbox images that failed while others succeeded.
	Notes    []string `json:"notes,omitempty"`
	Threaded bool     `json:"threaded"`
}

type groupKey struct {
	stdout   string
	stderr   string
	exitCode int
}

// GroupResults groups results by (stdout, stderr, exit code) in first-seen order.
// Each member's Index is its position in results.
func GroupResults(results []protocol.Result) []*Group {
	groups := orderedmap.New[groupKey, *Group]()

	for i, r := range results {
		// Byte equality decides membership; no transcoding happens here.
		key := groupKey{stdout: string(r.Stdout), stderr: string(r.Stderr), exitCode: r.ExitCode}
		g, ok := groups.Get(key)
		if !ok {
			g = &Group{Stdout: key.stdout, Stderr: key.stderr, ExitCode: key.exitCode}
			groups.Set(key, g)
		}
		g.Members = append(g.Members, Member{Index: i, Version: r.Version})
	}

	out := make([]*Group, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Format groups results and renders one attachment per group.
func Format(results []protocol.Result) *Report {
	groups := GroupResults(results)

	rep := &Report{Attachments: make([]Attachment, 0, len(groups))}
	for _, g := range groups {
		rep.Attachments = append(rep.Attachments, renderGroup(g))
	}

	rep.Threaded = len(rep.Attachments) > 1 ||
		(len(rep.Attachments) == 1 && strings.Count(rep.Attachments[0].Text, "\n") > longFormNewlines)

	return rep
}

func renderGroup(g *Group) Attachment {
	versions := FormatVersions(g.Members)
	ok := g.ExitCode == 0

	out := codeBlock(g.Stdout)
	errText := codeBlock(g.Stderr)

	var text string
	switch {
	case out != "" && errText != "":
		text = out + " " + errText
	case out != "":
		text = out
	case errText != "":
		text = errText
	default:
		text = NoOutputText
	}

	a := Attachment{
		Text:     text,
		MrkdwnIn: []string{"text"},
		Versions: versions,
		ExitCode: g.ExitCode,
		OK:       ok,
	}
	if ok {
		a.Title = MarkOK + " " + versions
		a.Color = ColorGood
	} else {
		a.Title = MarkFailed + " " + versions
		a.Color = ColorDanger
		a.Footer = "exit: " + strconv.Itoa(g.ExitCode)
	}
	return a
}

// codeBlock renders s without its trailing line break as an escaped code
// block, or "" when nothing is left.
func codeBlock(s string) string {
	s = chomp(s)
	if s == "" {
		return ""
	}
	return "```" + Escape(strings.ToValidUTF8(s, "\uFFFD")) + "```"
}

func chomp(s string) string {
	if strings.HasSuffix(s, "\n") {
		return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
	}
	return strings.TrimSuffix(s, "\r")
}

// Escape replaces the characters that carry markup meaning in message text.
// Backticks become fullwidth so output cannot close its code block.
func Escape(s string) string {
	return escaper.Replace(s)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "`", "\uff40")
