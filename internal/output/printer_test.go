package output_test

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a2abench/a2abench/internal/output"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the stream copier goroutines write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestApp_WritesLine(t *testing.T) {
	var buf syncBuffer
	p := output.NewPrinter(&buf)
	p.App("starting evaluation")
	p.Appf("agents ready: %d", 2)
	p.App("")

	out := buf.String()
	require.Contains(t, out, "starting evaluation")
	require.Contains(t, out, "agents ready: 2")
	require.Equal(t, 2, strings.Count(out, "\n"))
}

func TestStream_PrefixesLinesWithRole(t *testing.T) {
	var buf syncBuffer
	p := output.NewPrinter(&buf)

	w := p.Stream("green")
	fmt.Fprintln(w, "listening on :9009")
	fmt.Fprint(w, "second line\r\n")

	require.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "[green]") &&
			strings.Contains(out, "listening on :9009") &&
			strings.Contains(out, "second line") &&
			!strings.Contains(out, "\r")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_FlushesFinalLineOnClose(t *testing.T) {
	var buf syncBuffer
	p := output.NewPrinter(&buf)

	w := p.Stream("agent")
	fmt.Fprint(w, "no trailing newline")
	require.NoError(t, w.(io.Closer).Close())

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "[agent] no trailing newline\n")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_InterleavesWholeLines(t *testing.T) {
	var buf syncBuffer
	p := output.NewPrinter(&buf)

	a := p.Stream("a")
	b := p.Stream("b")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) { defer wg.Done(); fmt.Fprintf(a, "a line %d\n", i) }(i)
		go func(i int) { defer wg.Done(); fmt.Fprintf(b, "b line %d\n", i) }(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) < 40 {
			return false
		}
		for _, line := range lines {
			if !strings.Contains(line, "[a]") && !strings.Contains(line, "[b]") {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}
