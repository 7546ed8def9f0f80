package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"VideoPipeline-server/apperr"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store is the persistence collaborator consumed by the stage workers.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL through a pooled database/sql handle and wraps it in gorm.
func Open(dsn string, maxOpen, maxIdle int) (*Store, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("gorm init: %w", err)
	}
	return NewStore(gdb), nil
}

// NewStore wraps an already opened gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every pipeline table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Asset{}, &Project{}, &VoSegment{}, &Scene{}, &RenderJob{}, &RenderLog{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, "store", "load "+entity, id, nil)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

// ---- projects ----

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.Status == "" {
		p.Status = ProjectStatusCreated
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// GetProject loads the project row without its graph.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound("project", id, err)
	}
	return &p, nil
}

// LoadProjectGraph loads the project with scenes in index order, each scene's
// image asset and VO segment, and the project's music asset.
func (s *Store) LoadProjectGraph(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.WithContext(ctx).
		Preload("Scenes", func(db *gorm.DB) *gorm.DB {
			return db.Order("scene_index ASC")
		}).
		Preload("Scenes.ImageAsset").
		Preload("Scenes.VoSegment").
		Preload("MusicAsset").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound("project", id, err)
	}
	SortScenes(p.Scenes)
	return &p, nil
}

func (s *Store) UpdateProjectStatus(ctx context.Context, id, status string) error {
	res := s.db.WithContext(ctx).Model(&Project{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "store", "update project status", id, nil)
	}
	return nil
}

// SetProjectMusic replaces the project's music reference and status in one write.
func (s *Store) SetProjectMusic(ctx context.Context, projectID, assetID, status string) error {
	res := s.db.WithContext(ctx).Model(&Project{}).Where("id = ?", projectID).
		Updates(map[string]interface{}{
			"music_asset_id": assetID,
			"status":         status,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "store", "set project music", projectID, nil)
	}
	return nil
}

// ---- scenes ----

// SortScenes orders scenes by Index; row order from storage is never trusted.
func SortScenes(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].Index < scenes[j].Index })
}

// CreateScenes inserts a batch atomically.
func (s *Store) CreateScenes(ctx context.Context, scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&scenes).Error
	})
}

func (s *Store) ListScenes(ctx context.Context, projectID string) ([]Scene, error) {
	var scenes []Scene
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("scene_index ASC").Find(&scenes).Error; err != nil {
		return nil, err
	}
	SortScenes(scenes)
	return scenes, nil
}

// GetScenes loads the given scenes of a project in index order. Any id that
// does not belong to the project is reported as not found.
func (s *Store) GetScenes(ctx context.Context, projectID string, ids []string) ([]Scene, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var scenes []Scene
	if err := s.db.WithContext(ctx).Where("project_id = ? AND id IN ?", projectID, ids).Find(&scenes).Error; err != nil {
		return nil, err
	}
	if len(scenes) != len(uniqueStrings(ids)) {
		return nil, apperr.Wrap(apperr.ErrNotFound, "store", "load scenes",
			fmt.Sprintf("project %s: found %d of %d scenes", projectID, len(scenes), len(ids)), nil)
	}
	SortScenes(scenes)
	return scenes, nil
}

func (s *Store) AttachSceneImage(ctx context.Context, sceneID, assetID string) error {
	return s.updateScene(ctx, sceneID, "image_asset_id", assetID)
}

func (s *Store) AttachSceneVoSegment(ctx context.Context, sceneID, segmentID string) error {
	return s.updateScene(ctx, sceneID, "vo_segment_id", segmentID)
}

func (s *Store) updateScene(ctx context.Context, sceneID, column, value string) error {
	res := s.db.WithContext(ctx).Model(&Scene{}).Where("id = ?", sceneID).
		Updates(map[string]interface{}{column: value, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "store", "update scene "+column, sceneID, nil)
	}
	return nil
}

// ---- assets & voiceover ----

func (s *Store) CreateAsset(ctx context.Context, a *Asset) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) CreateVoSegment(ctx context.Context, v *VoSegment) error {
	return s.db.WithContext(ctx).Create(v).Error
}

// ReplaceSceneVoSegment stores v, points its scene at it and removes every
// other segment of that scene in one transaction, keeping scene and segment
// one-to-one across re-runs.
func (s *Store) ReplaceSceneVoSegment(ctx context.Context, v *VoSegment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		res := tx.Model(&Scene{}).Where("id = ?", v.SceneID).
			Updates(map[string]interface{}{"vo_segment_id": v.ID, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Wrap(apperr.ErrNotFound, "store", "replace vo segment", v.SceneID, nil)
		}
		return tx.Where("scene_id = ? AND id <> ?", v.SceneID, v.ID).Delete(&VoSegment{}).Error
	})
}

// ListVoSegments returns every segment stored for a scene.
func (s *Store) ListVoSegments(ctx context.Context, sceneID string) ([]VoSegment, error) {
	var segs []VoSegment
	if err := s.db.WithContext(ctx).Where("scene_id = ?", sceneID).Find(&segs).Error; err != nil {
		return nil, err
	}
	return segs, nil
}

// ---- render jobs ----

func (s *Store) CreateRenderJob(ctx context.Context, r *RenderJob) error {
	if r.Status == "" {
		r.Status = RenderStatusProcessing
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error
}

// GetRenderJob loads the job with its log lines in append order.
func (s *Store) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	var r RenderJob
	err := s.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, notFound("render job", id, err)
	}
	return &r, nil
}

func (s *Store) AppendRenderLog(ctx context.Context, renderJobID, line string) error {
	return s.db.WithContext(ctx).Create(&RenderLog{RenderJobID: renderJobID, Line: line}).Error
}

// StartRenderJob confirms the job is still processing; terminal jobs are never reopened.
func (s *Store) StartRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	r, err := s.GetRenderJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != RenderStatusProcessing {
		return nil, apperr.Wrap(apperr.ErrInvalidTransition, "store", "start render job",
			fmt.Sprintf("%s is %s", id, r.Status), nil)
	}
	return r, nil
}

func (s *Store) CompleteRenderJob(ctx context.Context, id string, artifacts map[string]string) error {
	m := datatypes.JSONMap{}
	for k, v := range artifacts {
		m[k] = v
	}
	now := time.Now()
	return s.finishRenderJob(ctx, id, RenderStatusCompleted, map[string]interface{}{
		"artifacts":    m,
		"completed_at": now,
	})
}

func (s *Store) FailRenderJob(ctx context.Context, id, message string) error {
	return s.finishRenderJob(ctx, id, RenderStatusFailed, map[string]interface{}{
		"error": message,
	})
}

// finishRenderJob moves processing -> terminal with a conditional update so
// that a terminal job can never be rewritten.
func (s *Store) finishRenderJob(ctx context.Context, id, status string, fields map[string]interface{}) error {
	fields["status"] = status
	fields["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).Model(&RenderJob{}).
		Where("id = ? AND status = ?", id, RenderStatusProcessing).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current RenderJob
		if err := s.db.WithContext(ctx).Select("id", "status").First(&current, "id = ?", id).Error; err != nil {
			return notFound("render job", id, err)
		}
		return apperr.Wrap(apperr.ErrInvalidTransition, "store", "finish render job",
			fmt.Sprintf("%s: %s -> %s", id, current.Status, status), nil)
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
