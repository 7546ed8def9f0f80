// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"VideoPipeline-server/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// MustOpenStore opens a migrated in-memory SQLite store and registers cleanup.
func MustOpenStore(t testing.TB) *models.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:pipeline_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := models.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject persists a fresh project.
func NewProject(t testing.TB, store *models.Store, aspect models.AspectRatio) *models.Project {
	t.Helper()

	p := &models.Project{
		ID:          fmt.Sprintf("project-%d", dbSeq.Add(1)),
		Title:       "Test Project",
		AspectRatio: aspect,
		Status:      models.ProjectStatusCreated,
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

// SceneSpec describes a scene fixture.
type SceneSpec struct {
	Index      int
	DurationMs int
	Overlay    *string
}

// NewScenes persists scenes in the order given, which need not match Index.
func NewScenes(t testing.TB, store *models.Store, projectID string, specs ...SceneSpec) []models.Scene {
	t.Helper()

	scenes := make([]models.Scene, 0, len(specs))
	for _, sp := range specs {
		scenes = append(scenes, models.Scene{
			ID:          fmt.Sprintf("%s-scene-%d", projectID, sp.Index),
			ProjectID:   projectID,
			Index:       sp.Index,
			DurationMs:  sp.DurationMs,
			OverlayText: sp.Overlay,
		})
	}
	for i := range scenes {
		if err := store.CreateScenes(context.Background(), scenes[i:i+1]); err != nil {
			t.Fatalf("CreateScenes: %v", err)
		}
	}
	return scenes
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}
