package messages

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Progress bar characters.
const (
	ProgressFilled = "█"
	ProgressEmpty  = "░"
)

// DefaultBarWidth is the progress bar width in cells.
const DefaultBarWidth = 30

// DrawProgressBar draws a progress bar of the given width.
// Value is clamped to [0, 1] range.
// Example: DrawProgressBar(0.7, 10) returns "███████░░░".
func DrawProgressBar(value float64, width int) string {
	if value < 0 {
		value = 0
	}

	if value > 1 {
		value = 1
	}

	filled := int(value * float64(width))

	return strings.Repeat(ProgressFilled, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// ProgressLine redraws a single "[bar] n/total label" line in place.
type ProgressLine struct {
	w     io.Writer
	label string
	width int

	mu       sync.Mutex
	lastDraw string
}

// NewProgressLine creates a progress line. Width <= 0 uses DefaultBarWidth.
func NewProgressLine(w io.Writer, label string, width int) *ProgressLine {
	if width <= 0 {
		width = DefaultBarWidth
	}

	return &ProgressLine{w: w, label: label, width: width}
}

// Update redraws the line. Identical frames are skipped.
func (p *ProgressLine) Update(processed, total int) {
	ratio := 1.0
	if total > 0 {
		ratio = float64(processed) / float64(total)
	}

	frame := fmt.Sprintf("\r[%s] %d/%d %s", DrawProgressBar(ratio, p.width), processed, total, p.label)

	p.mu.Lock()
	defer p.mu.Unlock()

	if frame == p.lastDraw {
		return
	}

	p.lastDraw = frame
	_, _ = io.WriteString(p.w, frame)

	if processed >= total {
		_, _ = io.WriteString(p.w, "\n")
	}
}
