package render

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"VideoPipeline-server/models"
)

type fcpxmlDoc struct {
	XMLName   xml.Name        `xml:"fcpxml"`
	Version   string          `xml:"version,attr"`
	Resources fcpxmlResources `xml:"resources"`
	Library   fcpxmlLibrary   `xml:"library"`
}

type fcpxmlResources struct {
	Format fcpxmlFormat  `xml:"format"`
	Assets []fcpxmlAsset `xml:"asset"`
}

type fcpxmlFormat struct {
	ID            string `xml:"id,attr"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         int    `xml:"width,attr"`
	Height        int    `xml:"height,attr"`
}

type fcpxmlAsset struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Src      string `xml:"src,attr"`
	Start    string `xml:"start,attr"`
	Duration string `xml:"duration,attr"`
	HasVideo string `xml:"hasVideo,attr,omitempty"`
	HasAudio string `xml:"hasAudio,attr,omitempty"`
	Format   string `xml:"format,attr,omitempty"`
}

type fcpxmlLibrary struct {
	Event fcpxmlEvent `xml:"event"`
}

type fcpxmlEvent struct {
	Name    string        `xml:"name,attr"`
	Project fcpxmlProject `xml:"project"`
}

type fcpxmlProject struct {
	Name     string         `xml:"name,attr"`
	Sequence fcpxmlSequence `xml:"sequence"`
}

type fcpxmlSequence struct {
	Format   string      `xml:"format,attr"`
	Duration string      `xml:"duration,attr"`
	TCStart  string      `xml:"tcStart,attr"`
	TCFormat string      `xml:"tcFormat,attr"`
	Spine    fcpxmlSpine `xml:"spine"`
}

type fcpxmlSpine struct {
	Items []fcpxmlClip `xml:",any"`
}

// fcpxmlClip is either an asset-clip or a gap; XMLName carries which.
type fcpxmlClip struct {
	XMLName   xml.Name
	Ref       string        `xml:"ref,attr,omitempty"`
	Name      string        `xml:"name,attr"`
	Lane      string        `xml:"lane,attr,omitempty"`
	Offset    string        `xml:"offset,attr"`
	Start     string        `xml:"start,attr,omitempty"`
	Duration  string        `xml:"duration,attr"`
	Volume    *fcpxmlVolume `xml:"adjust-volume,omitempty"`
	Connected []fcpxmlClip  `xml:"asset-clip,omitempty"`
}

type fcpxmlVolume struct {
	Amount string `xml:"amount,attr"`
}

// BuildFCPXML lays each scene image out on the spine at its cumulative start,
// scenes without an image as gaps. Non-mock narration is connected below its
// scene at lane -1 and non-mock music below the first clip at lane -2,
// attenuated by musicDB.
func BuildFCPXML(project *models.Project, musicDB float64) ([]byte, error) {
	tl := BuildTimeline(project.Scenes)
	width, height := project.AspectRatio.Dimensions()

	doc := fcpxmlDoc{
		Version: "1.9",
		Resources: fcpxmlResources{
			Format: fcpxmlFormat{ID: "r1", FrameDuration: "1/30s", Width: width, Height: height},
		},
	}
	nextID := 2
	newAsset := func(a fcpxmlAsset) string {
		a.ID = "r" + strconv.Itoa(nextID)
		nextID++
		doc.Resources.Assets = append(doc.Resources.Assets, a)
		return a.ID
	}

	spine := make([]fcpxmlClip, 0, len(tl.Slots))
	for i, slot := range tl.Slots {
		name := fmt.Sprintf("Scene %d", slot.Scene.Index+1)
		var clip fcpxmlClip
		if img := slot.Scene.ImageAsset; img != nil {
			ref := newAsset(fcpxmlAsset{
				Name: name, Src: img.URL, Start: "0s", Duration: fcpTime(slot.DurationMs),
				HasVideo: "1", Format: "r1",
			})
			clip = fcpxmlClip{XMLName: xml.Name{Local: "asset-clip"}, Ref: ref, Name: name,
				Offset: fcpTime(slot.StartMs), Start: "0s", Duration: fcpTime(slot.DurationMs)}
		} else {
			clip = fcpxmlClip{XMLName: xml.Name{Local: "gap"}, Name: name,
				Offset: fcpTime(slot.StartMs), Start: "0s", Duration: fcpTime(slot.DurationMs)}
		}

		if vo := slot.Scene.VoSegment; vo != nil && !models.IsMockURL(vo.AudioURL) {
			voName := "VO " + name
			ref := newAsset(fcpxmlAsset{Name: voName, Src: vo.AudioURL, Start: "0s",
				Duration: fcpTime(vo.DurationMs), HasAudio: "1"})
			clip.Connected = append(clip.Connected, fcpxmlClip{XMLName: xml.Name{Local: "asset-clip"},
				Ref: ref, Name: voName, Lane: "-1", Offset: "0s", Start: "0s", Duration: fcpTime(vo.DurationMs)})
		}
		if i == 0 && !project.MusicAsset.IsMock() {
			ref := newAsset(fcpxmlAsset{Name: "Music", Src: project.MusicAsset.URL, Start: "0s",
				Duration: fcpTime(tl.TotalMs), HasAudio: "1"})
			clip.Connected = append(clip.Connected, fcpxmlClip{XMLName: xml.Name{Local: "asset-clip"},
				Ref: ref, Name: "Music", Lane: "-2", Offset: "0s", Start: "0s", Duration: fcpTime(tl.TotalMs),
				Volume: &fcpxmlVolume{Amount: strconv.FormatFloat(musicDB, 'f', -1, 64) + "dB"}})
		}
		spine = append(spine, clip)
	}

	doc.Library.Event = fcpxmlEvent{
		Name: project.Title,
		Project: fcpxmlProject{
			Name: project.Title,
			Sequence: fcpxmlSequence{
				Format:   "r1",
				Duration: fcpTime(tl.TotalMs),
				TCStart:  "0s",
				TCFormat: "NDF",
				Spine:    fcpxmlSpine{Items: spine},
			},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fcpxml: %w", err)
	}
	out := []byte(xml.Header + "<!DOCTYPE fcpxml>\n")
	return append(append(out, body...), '\n'), nil
}

// fcpTime writes milliseconds as an FCPXML rational time.
func fcpTime(ms int) string {
	if ms == 0 {
		return "0s"
	}
	return fmt.Sprintf("%d/1000s", ms)
}
