package render

import (
	"fmt"
	"strings"

	"VideoPipeline-server/models"
)

// EDLEvent is one line of a CMX 3600 style edit decision list.
type EDLEvent struct {
	Track      string
	ClipName   string
	SourceFile string
	RecordIn   int
	DurationMs int
}

// EDLEvents lists V events for scenes with images, A1 events for scenes with
// narration (timed by the narration) and one A2 music event spanning the
// timeline.
func EDLEvents(project *models.Project) []EDLEvent {
	tl := BuildTimeline(project.Scenes)
	var video, voice []EDLEvent
	for _, slot := range tl.Slots {
		name := fmt.Sprintf("Scene %d", slot.Scene.Index+1)
		if img := slot.Scene.ImageAsset; img != nil {
			video = append(video, EDLEvent{Track: "V", ClipName: name, SourceFile: img.URL,
				RecordIn: slot.StartMs, DurationMs: slot.DurationMs})
		}
		if vo := slot.Scene.VoSegment; vo != nil {
			voice = append(voice, EDLEvent{Track: "A1", ClipName: "VO " + name, SourceFile: vo.AudioURL,
				RecordIn: slot.StartMs, DurationMs: vo.DurationMs})
		}
	}
	events := append(video, voice...)
	if m := project.MusicAsset; m != nil {
		events = append(events, EDLEvent{Track: "A2", ClipName: "Music", SourceFile: m.URL,
			RecordIn: 0, DurationMs: tl.TotalMs})
	}
	return events
}

// BuildEDL renders the events with timecodes at fps.
func BuildEDL(project *models.Project, fps int) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", project.Title)
	b.WriteString("FCM: NON-DROP FRAME\n\n")
	for i, ev := range EDLEvents(project) {
		fmt.Fprintf(&b, "%03d  AX       %-5s C        %s %s %s %s\n",
			i+1, ev.Track,
			Timecode(0, fps), Timecode(ev.DurationMs, fps),
			Timecode(ev.RecordIn, fps), Timecode(ev.RecordIn+ev.DurationMs, fps))
		fmt.Fprintf(&b, "* FROM CLIP NAME: %s\n", ev.ClipName)
		fmt.Fprintf(&b, "* SOURCE FILE: %s\n\n", ev.SourceFile)
	}
	return []byte(b.String())
}

// Timecode formats ms as HH:MM:SS:FF.
func Timecode(ms, fps int) string {
	if fps <= 0 {
		fps = 30
	}
	totalFrames := (ms*fps + 500) / 1000
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
