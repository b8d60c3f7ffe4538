package export

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Meter shows a running export on a single terminal line.
type Meter struct {
	out     io.Writer
	start   time.Time
	enabled bool

	mu   sync.Mutex
	last Status
}

// NewMeter creates a meter writing to out. A disabled meter only keeps the
// last status.
func NewMeter(out io.Writer, enabled bool) *Meter {
	return &Meter{out: out, start: time.Now(), enabled: enabled}
}

// Update records s and redraws the line. It is a ProgressFunc.
func (m *Meter) Update(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = s
	if m.enabled {
		fmt.Fprintf(m.out, "\r%s\033[K", m.line(s, time.Since(m.start)))
	}
}

// Finish ends the progress line.
func (m *Meter) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled && m.last.Total > 0 {
		fmt.Fprintln(m.out)
	}
}

// Elapsed returns the time since the meter was created.
func (m *Meter) Elapsed() time.Duration {
	return time.Since(m.start).Round(time.Second)
}

func (m *Meter) line(s Status, elapsed time.Duration) string {
	var pct float64
	if s.Total > 0 {
		pct = 100 * float64(s.Done) / float64(s.Total)
	}
	line := fmt.Sprintf("%s %3.0f%% %d/%d tiles %s",
		s.Archive, pct, s.Done, s.Total, humanize.Bytes(uint64(s.Bytes)))
	if s.Failed > 0 {
		line += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Done > 0 && s.Done < s.Total {
		eta := time.Duration(float64(elapsed) * float64(s.Total-s.Done) / float64(s.Done))
		line += ", " + eta.Round(time.Second).String() + " left"
	}
	return line
}
