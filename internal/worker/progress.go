package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const barWidth = 30

// Progress renders a single-line progress bar for a batch and keeps the
// latest stats for the final summary.
type Progress struct {
	out     io.Writer
	enabled bool
	start   time.Time
	now     func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewProgress creates a tracker for total images writing to stderr. When
// enabled is false it only collects stats.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		out:     os.Stderr,
		enabled: enabled,
		start:   time.Now(),
		now:     time.Now,
		stats:   Stats{Total: total},
	}
}

// IsTerminal reports whether w is an interactive terminal. The bar redraws
// its line with carriage returns, which only works there.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Callback returns a ProgressFunc suitable for Config.OnProgress.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Update stores s and redraws the bar.
func (p *Progress) Update(s Stats) {
	p.mu.Lock()
	p.stats = s
	p.mu.Unlock()

	if p.enabled {
		p.draw()
	}
}

// Stats returns the latest stats.
func (p *Progress) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Done draws the final state and ends the line.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.draw()
	fmt.Fprintln(p.out)
}

func (p *Progress) draw() {
	fmt.Fprint(p.out, "\r"+renderBar(p.Stats(), p.now().Sub(p.start))+"\x1b[K")
}

// Summary describes the finished batch in one line.
func (p *Progress) Summary() string {
	s := p.Stats()
	elapsed := p.now().Sub(p.start)
	return fmt.Sprintf("Enhanced %s of %s images (%d skipped, %d failed), wrote %s in %s",
		humanize.Comma(int64(s.Written())),
		humanize.Comma(int64(s.Total)),
		s.Skipped,
		s.Failed,
		humanize.Bytes(uint64(s.Bytes)),
		roundDuration(elapsed),
	)
}

// renderBar formats the bar line for s after elapsed. The rate counts only
// images that were enhanced, not skipped ones.
func renderBar(s Stats, elapsed time.Duration) string {
	var frac float64
	if s.Total > 0 {
		frac = float64(s.Completed) / float64(s.Total)
	}
	filled := int(frac * barWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] %d/%d images",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), s.Completed, s.Total)

	var notes []string
	if s.Skipped > 0 {
		notes = append(notes, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Failed > 0 {
		notes = append(notes, fmt.Sprintf("%d failed", s.Failed))
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(notes, ", "))
	}

	fmt.Fprintf(&b, " | %s", humanize.Bytes(uint64(s.Bytes)))

	worked := s.Completed - s.Skipped
	if worked > 0 && elapsed > 0 {
		rate := float64(worked) / elapsed.Seconds()
		fmt.Fprintf(&b, " | %.1f images/s", rate)
		if remaining := s.Total - s.Completed; remaining > 0 {
			eta := time.Duration(float64(remaining) / rate * float64(time.Second))
			fmt.Fprintf(&b, " | ETA %s", roundDuration(eta))
		}
	}
	if s.Completed == s.Total {
		fmt.Fprintf(&b, " | done in %s", roundDuration(elapsed))
	}
	return b.String()
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(time.Second)
}
