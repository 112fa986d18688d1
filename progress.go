package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"video-rewrite/internal/logging"
)

const defaultBarWidth = 80

// progressBar draws run progress. On a terminal it redraws one line in
// place; otherwise it logs every tenth of the run.
type progressBar struct {
	out   io.Writer
	tty   bool
	width int
	label string
	start time.Time

	drawn  int // last drawn permille on a tty, last logged decile otherwise
	active bool
}

func newProgressBar(f *os.File, label string) *progressBar {
	fd := int(f.Fd())
	b := &progressBar{
		out:   f,
		tty:   term.IsTerminal(fd),
		width: defaultBarWidth,
		label: label,
		start: time.Now(),
		drawn: -1,
	}
	if b.tty {
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			b.width = w
		}
	}
	return b
}

// Update shows progress v in [0, 1].
func (b *progressBar) Update(v float64) {
	if !b.tty {
		if decile := int(v * 10); decile > b.drawn {
			b.drawn = decile
			logging.Info("%s: %d%%", b.label, decile*10)
		}
		return
	}

	permille := int(v * 1000)
	if permille == b.drawn {
		return
	}
	b.drawn = permille
	b.active = true
	fmt.Fprintf(b.out, "\r%s", renderBar(b.label, v, time.Since(b.start), b.width))
}

// Finish ends the progress line.
func (b *progressBar) Finish() {
	if b.tty && b.active {
		fmt.Fprintln(b.out)
	}
}

// renderBar formats one line of exactly width columns, for example
//
//	clip.mov [=========>          ]  47.5% 00:12 left
func renderBar(label string, v float64, elapsed time.Duration, width int) string {
	v = min(max(v, 0), 1)

	tail := fmt.Sprintf(" %5.1f%% %s", v*100, eta(v, elapsed))
	barWidth := width - len(tail) - 3 - 20
	if barWidth < 10 {
		barWidth = 10
	}

	maxLabel := width - len(tail) - barWidth - 3
	if maxLabel < 1 {
		maxLabel = 1
	}
	if len(label) > maxLabel {
		label = label[:maxLabel-1] + "~"
	}

	filled := int(v * float64(barWidth))
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}

	line := fmt.Sprintf("%s [%s]%s", label, bar, tail)
	if len(line) < width {
		line += strings.Repeat(" ", width-len(line))
	}
	return line
}

func eta(v float64, elapsed time.Duration) string {
	if v <= 0 || elapsed <= 0 {
		return "--:-- left"
	}
	if v >= 1 {
		return "done      "
	}
	remaining := time.Duration(float64(elapsed) * (1 - v) / v).Round(time.Second)
	m := int(remaining / time.Minute)
	s := int((remaining % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d left", m, s)
}
