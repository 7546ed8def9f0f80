package render

import (
	"strconv"
	"strings"
)

// progressTracker turns ffmpeg -progress key=value lines into a percentage
// that never decreases.
type progressTracker struct {
	totalUs int64
	last    float64
}

func newProgressTracker(totalMs int) *progressTracker {
	return &progressTracker{totalUs: int64(totalMs) * 1000}
}

// Observe returns the current percentage for lines that carry a position.
func (p *progressTracker) Observe(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	var pct float64
	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds as well.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 || p.totalUs <= 0 {
			return 0, false
		}
		pct = float64(us) / float64(p.totalUs) * 100
	case "progress":
		if value != "end" {
			return 0, false
		}
		pct = 100
	default:
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	if pct < p.last {
		pct = p.last
	}
	p.last = pct
	return pct, true
}
