package render

import (
	"sort"

	"VideoPipeline-server/models"
)

// Slot is one scene placed on the timeline.
type Slot struct {
	Scene      *models.Scene
	StartMs    int
	DurationMs int
}

func (s Slot) EndMs() int { return s.StartMs + s.DurationMs }

type Timeline struct {
	Slots   []Slot
	TotalMs int
}

// BuildTimeline orders scenes by Index and assigns each a start equal to the
// running sum of the durations before it. Every pass that needs timing calls
// this from scratch so they all agree.
func BuildTimeline(scenes []models.Scene) Timeline {
	ordered := make([]*models.Scene, len(scenes))
	for i := range scenes {
		ordered[i] = &scenes[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	tl := Timeline{Slots: make([]Slot, 0, len(ordered))}
	cursor := 0
	for _, s := range ordered {
		tl.Slots = append(tl.Slots, Slot{Scene: s, StartMs: cursor, DurationMs: s.DurationMs})
		cursor += s.DurationMs
	}
	tl.TotalMs = cursor
	return tl
}

func seconds(ms int) float64 {
	return float64(ms) / 1000
}
