package models

import (
	"time"

	"gorm.io/datatypes"
)

// RenderJob states. processing is the only non-terminal state.
const (
	RenderStatusProcessing = "processing"
	RenderStatusCompleted  = "completed"
	RenderStatusFailed     = "failed"
)

// Artifact kinds recorded on a completed render.
const (
	ArtifactMP4    = "mp4"
	ArtifactFCPXML = "fcpxml"
	ArtifactEDL    = "edl"
)

type RenderJob struct {
	ID           string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID    string            `gorm:"type:varchar(64);index" json:"projectId"`
	Status       string            `gorm:"type:varchar(16)" json:"status"`
	ExportFCPXML bool              `json:"exportFcpxml"`
	ExportEDL    bool              `json:"exportEdl"`
	Logs         []RenderLog       `gorm:"foreignKey:RenderJobID" json:"logs"`
	Artifacts    datatypes.JSONMap `json:"artifacts"`
	Error        *string           `gorm:"type:text" json:"error,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (RenderJob) TableName() string {
	return "render_job"
}

// Terminal reports whether the job can no longer change state.
func (r *RenderJob) Terminal() bool {
	return r.Status == RenderStatusCompleted || r.Status == RenderStatusFailed
}

// LogLines flattens the ordered log rows.
func (r *RenderJob) LogLines() []string {
	lines := make([]string, 0, len(r.Logs))
	for _, l := range r.Logs {
		lines = append(lines, l.Line)
	}
	return lines
}

// ArtifactURL returns the URL recorded for kind, or "".
func (r *RenderJob) ArtifactURL(kind string) string {
	if r.Artifacts == nil {
		return ""
	}
	if s, ok := r.Artifacts[kind].(string); ok {
		return s
	}
	return ""
}

// RenderLog is one append-only progress line. ID order is log order.
type RenderLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	RenderJobID string    `gorm:"type:varchar(64);index" json:"-"`
	Line        string    `gorm:"type:text" json:"line"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (RenderLog) TableName() string {
	return "render_log"
}
