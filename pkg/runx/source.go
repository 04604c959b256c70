package runx

import (
	"fmt"
	"regexp"
	"strconv"
)

// SourceLocation points at a line in a Runfile.
type SourceLocation struct {
	File string
	Line int
}

var framePattern = regexp.MustCompile(`^(.*?):(\d+)`)

// ParseSourceLocation reads a "file:line" frame description as produced by
// most interpreters. Unparseable frames keep the raw text as the file name.
func ParseSourceLocation(frame string) SourceLocation {
	match := framePattern.FindStringSubmatch(frame)
	if match == nil {
		return SourceLocation{File: frame}
	}

	line, err := strconv.Atoi(match[2])
	if err != nil {
		return SourceLocation{File: match[1]}
	}

	return SourceLocation{File: match[1], Line: line}
}

func (s SourceLocation) String() string {
	if s.File == "" {
		return "(unknown)"
	}
	if s.Line <= 0 {
		return s.File
	}

	return fmt.Sprintf("%s:%d", s.File, s.Line)
}
