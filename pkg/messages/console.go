package messages

import (
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleOptions configures a ConsoleSink.
type ConsoleOptions struct {
	// NoColor disables ANSI colors.
	NoColor bool

	// MinLevel hides messages below it.
	MinLevel Level
}

// ConsoleSink prints messages as colored, prefixed lines.
type ConsoleSink struct {
	w    io.Writer
	opts ConsoleOptions

	mu     sync.Mutex
	styles map[Level]*color.Color
}

var prefixes = map[Level]string{
	LevelDebug:    "[.] ",
	LevelInfo:     "[i] ",
	LevelSuccess:  "[+] ",
	LevelWarning:  "[!] ",
	LevelError:    "[x] ",
	LevelCritical: "[X] ",
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer, opts ConsoleOptions) *ConsoleSink {
	styles := map[Level]*color.Color{
		LevelDebug:    color.New(color.FgHiBlack),
		LevelInfo:     color.New(color.FgCyan),
		LevelSuccess:  color.New(color.FgGreen),
		LevelWarning:  color.New(color.FgYellow),
		LevelError:    color.New(color.FgRed),
		LevelCritical: color.New(color.FgRed, color.Bold),
	}

	for _, c := range styles {
		if opts.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}

	return &ConsoleSink{w: w, opts: opts, styles: styles}
}

// Send implements Sink.
func (c *ConsoleSink) Send(m Message) {
	if m.Level < c.opts.MinLevel {
		return
	}

	style, ok := c.styles[m.Level]
	if !ok {
		style = c.styles[LevelInfo]
	}

	text := prefixes[m.Level] + strings.TrimRight(m.Text, "\n") + "\n"

	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = style.Fprint(c.w, text)
}
