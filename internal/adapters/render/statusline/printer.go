// Package statusline prints the fleet's per-transition console lines with
// a colored [botfleet] prefix.
package statusline

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/arven-dev/botfleet/internal/ports"
)

type styles struct {
	bracket lipgloss.Style
	tag     lipgloss.Style
	status  lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles() styles {
	return styles{
		bracket: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		tag:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
}

var _ ports.StatusSink = (*Printer)(nil)

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styles: newStyles()}
}

func (p *Printer) Statusf(format string, args ...any) {
	p.write(p.styles.status.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Warnf(format string, args ...any) {
	p.write(p.styles.warning.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Errorf(format string, args ...any) {
	p.write(p.styles.failure.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) write(line string) {
	prefix := p.styles.bracket.Render("[") + p.styles.tag.Render("botfleet") + p.styles.bracket.Render("]")

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "%s %s\n", prefix, line)
}
