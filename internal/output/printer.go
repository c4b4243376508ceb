// Package output renders operator-facing console text: bold application
// lines and per-role prefixed streaming of child process output.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var rolePalette = []lipgloss.Color{
	lipgloss.Color("110"),
	lipgloss.Color("150"),
	lipgloss.Color("215"),
	lipgloss.Color("176"),
	lipgloss.Color("81"),
}

// Printer writes styled console output. Safe for concurrent use: child
// process streams and application lines interleave on whole lines.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	appStyle  lipgloss.Style
	nextColor int
}

func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{
		out:      out,
		appStyle: lipgloss.NewStyle().Bold(true),
	}
}

// App writes one bold application line.
func (p *Printer) App(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.appStyle.Render(text))
}

func (p *Printer) Appf(format string, args ...any) {
	p.App(fmt.Sprintf(format, args...))
}

// Stream returns a writer that prefixes every line of a child process's
// output with its role, in a color assigned per stream.
func (p *Printer) Stream(role string) io.Writer {
	p.mu.Lock()
	color := rolePalette[p.nextColor%len(rolePalette)]
	p.nextColor++
	p.mu.Unlock()

	style := lipgloss.NewStyle().Foreground(color)
	pr, pw := io.Pipe()
	go p.copyLines(pr, style.Render("["+role+"]"))
	return pw
}

func (p *Printer) copyLines(r io.Reader, prefix string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		p.mu.Lock()
		fmt.Fprintf(p.out, "%s %s\n", prefix, line)
		p.mu.Unlock()
	}
}
