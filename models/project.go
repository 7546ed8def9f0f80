package models

import (
	"strings"
	"time"
)

// Project lifecycle states.
const (
	ProjectStatusCreated             = "created"
	ProjectStatusStoryboardGenerated = "storyboard_generated"
	ProjectStatusVOGenerated         = "vo_generated"
	ProjectStatusMusicSelected       = "music_selected"
	ProjectStatusRendering           = "rendering"
	ProjectStatusCompleted           = "completed"
	ProjectStatusFailed              = "failed"
)

type AspectRatio string

const (
	AspectVertical   AspectRatio = "vertical"
	AspectHorizontal AspectRatio = "horizontal"
	AspectSquare     AspectRatio = "square"
)

// Dimensions maps the aspect ratio to output pixels. Unknown values render vertical.
func (a AspectRatio) Dimensions() (width, height int) {
	switch a {
	case AspectHorizontal:
		return 1920, 1080
	case AspectSquare:
		return 1080, 1080
	default:
		return 1080, 1920
	}
}

// ParseAspectRatio accepts the named ratios and their "9:16" style spellings.
func ParseAspectRatio(s string) (AspectRatio, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertical", "9:16", "portrait":
		return AspectVertical, true
	case "horizontal", "16:9", "landscape":
		return AspectHorizontal, true
	case "square", "1:1":
		return AspectSquare, true
	}
	return "", false
}

type Project struct {
	ID           string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title        string      `json:"title"`
	AspectRatio  AspectRatio `gorm:"type:varchar(16)" json:"aspectRatio"`
	Status       string      `gorm:"type:varchar(32);index" json:"status"`
	MusicAssetID *string     `gorm:"type:varchar(64)" json:"musicAssetId,omitempty"`
	MusicAsset   *Asset      `gorm:"foreignKey:MusicAssetID" json:"musicAsset,omitempty"`
	Scenes       []Scene     `gorm:"foreignKey:ProjectID" json:"scenes,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

// TotalDurationMs sums scene durations.
func (p *Project) TotalDurationMs() int {
	total := 0
	for _, s := range p.Scenes {
		total += s.DurationMs
	}
	return total
}
