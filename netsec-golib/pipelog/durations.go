package pipelog

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"
)

type timing struct {
	stage string
	took  time.Duration
}

// Durations keeps the wall time of each stage in the order the stages ran.
type Durations []timing

// Record appends the time taken by a stage.
func (t *Durations) Record(stage string, d time.Duration) {
	*t = append(*t, timing{stage, d})
}

// Total is the sum of all recorded stages.
func (t Durations) Total() time.Duration {
	var total time.Duration
	for _, e := range t {
		total += e.took
	}
	return total
}

// Map returns the recorded durations keyed by stage. A stage recorded twice keeps the sum.
func (t Durations) Map() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t))
	for _, e := range t {
		out[e.stage] += e.took
	}
	return out
}

// Flush writes a stage / duration / share table to i.
func (t Durations) Flush(i Interface) {
	total := t.Total()
	var b bytes.Buffer
	tw := tabwriter.NewWriter(&b, 4, 4, 1, ' ', 0)
	for _, e := range t {
		share := 0.0
		if total > 0 {
			share = 100 * float64(e.took) / float64(total)
		}
		fmt.Fprintf(tw, "   %s\t%s\t%5.1f%%\n", e.stage, e.took.Round(time.Millisecond), share)
	}
	fmt.Fprintf(tw, "   total\t%s\t\n", total.Round(time.Millisecond))
	tw.Flush()

	i.Println(b.String())
}
