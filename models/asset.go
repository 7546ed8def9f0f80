package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MockURLPrefix marks a URL for which no real bytes exist. Consumers
// synthesize media locally instead of fetching it.
const MockURLPrefix = "mock://"

const (
	AssetKindImage = "image"
	AssetKindAudio = "audio"
)

const (
	AssetRoleSceneImage = "scene_image"
	AssetRoleMusic      = "music"
)

// Asset is an immutable generated artifact.
type Asset struct {
	ID        string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string            `gorm:"type:varchar(64);index" json:"projectId"`
	Kind      string            `gorm:"type:varchar(16)" json:"kind"`
	Role      string            `gorm:"type:varchar(32)" json:"role"`
	URL       string            `gorm:"type:text" json:"url"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (Asset) TableName() string {
	return "asset"
}

// IsMock reports whether the asset has no real bytes behind it.
func (a *Asset) IsMock() bool {
	return a == nil || IsMockURL(a.URL)
}

// IsMockURL reports whether url carries the mock sentinel prefix.
func IsMockURL(url string) bool {
	return strings.HasPrefix(strings.TrimSpace(url), MockURLPrefix)
}
