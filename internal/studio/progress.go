// Package studio implements the client side of the animation generator: an
// HTTP client for the studio API, a transcript of prompts and replies, and a
// Session that drives one submission at a time while reporting progress.
package studio

import (
	"fmt"
	"time"
)

// Stage is one step of the progress schedule. Caption is shown once at least
// After has elapsed since the submission started.
type Stage struct {
	After   time.Duration
	Caption string
}

// DefaultSchedule mirrors the rough phases of a workflow run. The timings are
// cosmetic; the server reports no real progress.
var DefaultSchedule = []Stage{
	{After: 0, Caption: "Analyzing your request..."},
	{After: 5 * time.Second, Caption: "Generating animation code..."},
	{After: 15 * time.Second, Caption: "Rendering your animation..."},
	{After: 25 * time.Second, Caption: "Almost there! Finalizing..."},
}

// maxPercent keeps the bar short of completion until the reply arrives.
const maxPercent = 95

// Progress is the state of a pending submission at a given elapsed time.
type Progress struct {
	Stage   int
	Caption string
	Elapsed time.Duration
	Percent int
}

// String renders the progress as a single status line.
func (p Progress) String() string {
	return fmt.Sprintf("%s %s (%d%%)", FormatElapsed(p.Elapsed), p.Caption, p.Percent)
}

// Evaluate returns the latest stage of schedule reached at elapsed. Stages
// must be ordered by After. An empty schedule yields a zero Progress carrying
// only the elapsed time.
func Evaluate(schedule []Stage, elapsed time.Duration) Progress {
	p := Progress{Elapsed: elapsed}
	if len(schedule) == 0 {
		return p
	}
	for i, s := range schedule {
		if elapsed < s.After {
			break
		}
		p.Stage = i
	}
	p.Caption = schedule[p.Stage].Caption
	if n := len(schedule); n > 1 {
		p.Percent = min(p.Stage*100/(n-1), maxPercent)
	}
	return p
}

// FormatElapsed formats d as m:ss. Negative durations count as zero.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
