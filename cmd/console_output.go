package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// ConsoleWriter renders zerolog events as "[runx] message" lines.
type ConsoleWriter struct {
	out    io.Writer
	colors colorstring.Colorize
	debug  bool

	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter(out io.Writer, color, debug bool) *ConsoleWriter {
	return &ConsoleWriter{
		out: out,
		colors: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !color,
		},
		debug: debug,
	}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	w.buffer.WriteString("[runx] ")

	// messages are written as-is, only these codes are colorized
	switch evt["level"] {
	case "fatal":
		fallthrough
	case "error":
		w.buffer.WriteString(w.colors.Color("[red][bold]") + "error" + w.colors.Color("[reset]") + ": ")
	case "warn":
		w.buffer.WriteString(w.colors.Color("[yellow]") + "warning" + w.colors.Color("[reset]") + ": ")
	case "debug":
		fallthrough
	case "trace":
		w.buffer.WriteString(w.colors.Color("[dark_gray]"))
	}

	msg, _ := evt["message"].(string)
	errorDetails, hasError := evt["error"].(string)
	if msg == "" && hasError {
		msg = errorDetails
		hasError = false
	}
	w.buffer.WriteString(msg)

	if hasError {
		w.buffer.WriteString(": ")
		w.buffer.WriteString(errorDetails)
	}

	if w.debug {
		names := make([]string, 0, len(evt))
		for name := range evt {
			switch name {
			case "level", "message", "error":
			default:
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("\n  %s: %+v", name, evt[name]))
		}
	}

	w.buffer.WriteString(w.colors.Color("[reset]"))
	w.buffer.WriteString("\n")
	_, err = io.WriteString(w.out, w.buffer.String())
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
