package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/drunlade/go-rft/rft"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

// progressLine redraws a single status line on a terminal.
type progressLine struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	drawn   bool
}

// newProgressLine draws on w only if it is a terminal and quiet is unset.
func newProgressLine(w io.Writer, quiet bool) *progressLine {
	enabled := false
	if f, ok := w.(*os.File); ok && !quiet {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &progressLine{w: w, enabled: enabled}
}

// callbacks returns transfer hooks that drive the line.
func (p *progressLine) callbacks() *rft.Callbacks {
	return &rft.Callbacks{
		OnProgress:     p.update,
		OnFileComplete: p.complete,
		OnError:        func(error, string) { p.finish() },
	}
}

func (p *progressLine) update(name string, transferred, total int64, rate float64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	amount := formatBytes(transferred)
	if total >= 0 {
		amount += " / " + formatBytes(total)
	}
	fmt.Fprintf(p.w, "\r\033[K%s %s %s", nameStyle.Render(name), amount,
		mutedStyle.Render(formatBytes(int64(rate))+"/s"))
	p.drawn = true
}

func (p *progressLine) complete(name string, n int64, d time.Duration) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\r\033[K%s %s in %s %s\n", nameStyle.Render(name), formatBytes(n),
		d.Round(time.Millisecond), successStyle.Render("done"))
	p.drawn = false
}

// finish ends a partially drawn line.
func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
