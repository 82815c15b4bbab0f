package ledgercache

import "fmt"

// Phase is the state of one sync pass.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListing
	PhaseDiffing
	PhaseFetching
	PhaseWriting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListing:
		return "listing"
	case PhaseDiffing:
		return "diffing"
	case PhaseFetching:
		return "fetching"
	case PhaseWriting:
		return "writing"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Progress is a snapshot of how many stale keys a pass has committed.
type Progress struct {
	Current int
	Total   int
}

// Percent is Current/Total in percent, with Current clamped to Total.
// An empty pass is complete.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	cur := min(p.Current, p.Total)
	return float64(cur) / float64(p.Total) * 100
}

// String renders "[cur / max] (pct%)".
func (p Progress) String() string {
	return fmt.Sprintf("[%d / %d] (%.2f%%)", min(p.Current, p.Total), p.Total, p.Percent())
}
