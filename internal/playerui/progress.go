// Package playerui formats player.Stats for a terminal status line. It is
// pure functions over data the player already exposes, grounded on the
// original source's display_progress_bar: a fixed-width bar, elapsed and
// total duration, current speed, and counts.
package playerui

import (
	"fmt"
	"strings"
	"time"

	"timeskip/internal/player"
)

// BarWidth is the number of characters between the brackets of the
// rendered progress bar.
const BarWidth = 40

// Bar renders a fixed-width "[====>    ]" progress bar for the given
// stats. Safe to call with Total == 0 (renders an empty bar).
func Bar(s player.Stats) string {
	filled := 0
	if s.Total > 0 {
		filled = (s.CurrentMessage * BarWidth) / s.Total
		if filled > BarWidth {
			filled = BarWidth
		}
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("=", filled))
	if filled < BarWidth {
		b.WriteByte('>')
		b.WriteString(strings.Repeat(" ", BarWidth-filled-1))
	}
	b.WriteByte(']')
	return b.String()
}

// Line renders the full status line: bar, position/duration, speed, and
// publish counts.
func Line(s player.Stats) string {
	speed := "unthrottled"
	if s.Speed > 0 {
		speed = fmt.Sprintf("%.1fx", s.Speed)
	}

	status := fmt.Sprintf("%d/%d", s.CurrentMessage, s.Total)
	elapsed := time.Duration(s.PositionNs)
	total := time.Duration(s.DurationNs)

	return fmt.Sprintf("%s %s  %s / %s  speed=%s  published=%d  not_published=%d",
		Bar(s), status, elapsed.Round(time.Millisecond), total.Round(time.Millisecond),
		speed, s.MessagesPublished, s.NotPublished)
}
