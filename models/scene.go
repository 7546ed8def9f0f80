package models

import "time"

type Scene struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID    string     `gorm:"type:varchar(64);uniqueIndex:idx_scene_project_index" json:"projectId"`
	Index        int        `gorm:"column:scene_index;uniqueIndex:idx_scene_project_index" json:"index"`
	DurationMs   int        `json:"durationMs"`
	Description  string     `json:"description"`
	OverlayText  *string    `json:"overlayText,omitempty"`
	Narration    string     `json:"narration"`
	ImageAssetID *string    `gorm:"type:varchar(64)" json:"imageAssetId,omitempty"`
	ImageAsset   *Asset     `gorm:"foreignKey:ImageAssetID" json:"imageAsset,omitempty"`
	VoSegmentID  *string    `gorm:"type:varchar(64)" json:"voSegmentId,omitempty"`
	VoSegment    *VoSegment `gorm:"foreignKey:VoSegmentID" json:"voSegment,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (Scene) TableName() string {
	return "scene"
}

// Overlay returns the overlay text or "" when unset.
func (s *Scene) Overlay() string {
	if s.OverlayText == nil {
		return ""
	}
	return *s.OverlayText
}

// VoSegment is one synthesized narration clip tied to exactly one scene.
type VoSegment struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SceneID    string    `gorm:"type:varchar(64);index" json:"sceneId"`
	Text       string    `json:"text"`
	AudioURL   string    `json:"audioUrl"`
	DurationMs int       `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (VoSegment) TableName() string {
	return "vo_segment"
}
