package runx

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/mitchellh/colorstring"
)

// DefaultHelpWidth is used when the terminal width cannot be determined.
const DefaultHelpWidth = 80

const (
	helpPad       = 5
	minHelpWidth  = 20
	defaultMarker = "(default)"
)

// HelpOptions controls help rendering.
type HelpOptions struct {
	// Width is the number of usable columns.
	Width int
	Color bool
}

// WriteHelp renders the task list, grouped by Runfile when tasks come from
// more than one file.
func (m *Manager) WriteHelp(w io.Writer, opts HelpOptions) error {
	colors := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !opts.Color,
	}

	contributing := 0
	for _, file := range m.files {
		if len(m.perFile[file]) > 0 {
			contributing++
		}
	}
	multifile := contributing > 1

	leader := "  "
	if multifile {
		leader = "    "
	}

	titleWidth := 0
	for _, task := range m.Tasks() {
		if width := runewidth.StringWidth(m.plainTitle(task)); width > titleWidth {
			titleWidth = width
		}
	}

	descWidth := opts.Width - len(leader) - titleWidth - helpPad
	if descWidth < minHelpWidth {
		descWidth = minHelpWidth
	}
	descLeader := strings.Repeat(" ", len(leader)+titleWidth+helpPad)

	var b strings.Builder
	b.WriteString("Tasks:\n")

	for _, file := range m.files {
		tasks := m.perFile[file]
		if len(tasks) == 0 {
			continue
		}

		b.WriteString("\n")
		if multifile {
			fmt.Fprintf(&b, "  %s\n\n", m.relativeDir(file))
		}

		for _, task := range tasks {
			plain := m.plainTitle(task)
			b.WriteString(leader)
			b.WriteString(m.colorTitle(task, colors))
			b.WriteString(strings.Repeat(" ", titleWidth-runewidth.StringWidth(plain)+helpPad))

			for idx, line := range wordWrap(task.Description, descWidth) {
				if idx > 0 {
					b.WriteString(descLeader)
				}
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (m *Manager) plainTitle(task *Task) string {
	title := task.Title()
	if task == m.auto {
		title += " " + defaultMarker
	}
	return title
}

func (m *Manager) colorTitle(task *Task, colors colorstring.Colorize) string {
	// only the codes go through colors, task names may contain brackets
	reset := colors.Color("[reset]")
	parts := []string{colors.Color("[cyan]") + task.Name + reset}
	if sig := task.Signature.String(); sig != "" {
		parts = append(parts, sig)
	}
	if task == m.auto {
		parts = append(parts, colors.Color("[dark_gray]")+defaultMarker+reset)
	}
	return strings.Join(parts, " ")
}

// relativeDir names a Runfile's directory relative to the parent of the
// common directory, e.g. "project/tools".
func (m *Manager) relativeDir(file string) string {
	dir := filepath.Dir(file)
	rel, err := filepath.Rel(m.commonDir, dir)
	if err != nil || rel == "." {
		rel = ""
	}

	return filepath.Clean(filepath.Join(filepath.Base(m.commonDir), rel))
}

func wordWrap(text string, width int) []string {
	lines := []string{}
	for _, part := range strings.Split(text, "\n") {
		lines = append(lines, wordWrapLine(part, width)...)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// wordWrapLine breaks at the last whitespace at or before width, or hard at
// width when there is none.
func wordWrapLine(text string, width int) []string {
	lines := []string{}
	runes := []rune(text)

	for len(runes) > width {
		index := -1
		for i := width; i >= 0; i-- {
			if unicode.IsSpace(runes[i]) {
				index = i
				break
			}
		}
		if index < 0 {
			index = width
		}

		lines = append(lines, strings.TrimRightFunc(string(runes[:index]), unicode.IsSpace))
		runes = []rune(strings.TrimLeftFunc(string(runes[index:]), unicode.IsSpace))
	}

	return append(lines, string(runes))
}

// commonDir returns the deepest directory shared by all dirs.
func commonDir(dirs []string) string {
	var common []string
	for idx, dir := range dirs {
		segments := pathSegments(dir)
		if idx == 0 {
			common = segments
			continue
		}

		n := 0
		for n < len(common) && n < len(segments) && common[n] == segments[n] {
			n++
		}
		common = common[:n]
	}

	if len(common) == 0 {
		return ""
	}
	return common[len(common)-1]
}

// pathSegments lists dir and all of its ancestors, root first.
func pathSegments(dir string) []string {
	segments := []string{}
	dir = filepath.Clean(dir)
	for {
		segments = append(segments, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments
}
