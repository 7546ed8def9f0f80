package pipeline_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/pipeline"
	"VideoPipeline-server/providers"
	"VideoPipeline-server/render"
	"VideoPipeline-server/service"
	"VideoPipeline-server/testsupport"

	"gorm.io/gorm"
)

type recordingQueue struct {
	mu     sync.Mutex
	images []service.ImagesPayload
}

func (q *recordingQueue) EnqueueStoryboard(ctx context.Context, p service.StoryboardPayload) (string, error) {
	return "storyboard-task", nil
}

func (q *recordingQueue) EnqueueImages(ctx context.Context, p service.ImagesPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.images = append(q.images, p)
	return "images-task", nil
}

func (q *recordingQueue) EnqueueVoiceover(ctx context.Context, p service.VoiceoverPayload) (string, error) {
	return "voiceover-task", nil
}

func (q *recordingQueue) EnqueueMusic(ctx context.Context, p service.MusicPayload) (string, error) {
	return "music-task", nil
}

func (q *recordingQueue) EnqueueRender(ctx context.Context, p service.RenderPayload) (string, error) {
	return "render-task", nil
}

// stubTranscoder writes placeholder files where ffmpeg would.
type stubTranscoder struct {
	mu      sync.Mutex
	stills  int
	mux     *render.MuxRequest
	failMux error
}

func (s *stubTranscoder) EncodeStill(ctx context.Context, clip render.StillClip) error {
	s.mu.Lock()
	s.stills++
	s.mu.Unlock()
	return os.WriteFile(clip.OutPath, []byte("clip"), 0o644)
}

func (s *stubTranscoder) Concat(ctx context.Context, clips []string, listPath, outPath string) error {
	return os.WriteFile(outPath, []byte("silent"), 0o644)
}

func (s *stubTranscoder) Mux(ctx context.Context, req render.MuxRequest, progress func(float64)) error {
	s.mux = &req
	if s.failMux != nil {
		return s.failMux
	}
	progress(50)
	progress(100)
	return os.WriteFile(req.OutPath, []byte("mp4"), 0o644)
}

type harness struct {
	stages     *pipeline.Stages
	store      *models.Store
	queue      *recordingQueue
	transcoder *stubTranscoder
	locker     *service.LocalLocker
	scratch    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := testsupport.MustOpenStore(t)
	blobs, err := service.NewFileStore(t.TempDir(), "http://blobs.test")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	renderCfg := config.RenderConfig{
		FPS: 30, CRF: 23, Preset: "fast", AudioBitrate: "192k",
		MusicDuckDB: -12, FCPXMLMusicDB: -12, ClipParallelism: 2,
		FontSize: 32, SideMargin: 20, LineHeight: 40,
	}
	comp, err := render.NewCompositor(renderCfg, nil)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	tr := &stubTranscoder{}
	queue := &recordingQueue{}
	locker := service.NewLocalLocker()
	scratch := t.TempDir()
	mock := config.ProviderConfig{}

	return &harness{
		stages: &pipeline.Stages{
			Store:        store,
			Providers:    providers.NewRegistry(mock, mock, mock, logging.Nop()),
			Blobs:        blobs,
			Queue:        queue,
			Locker:       locker,
			LeaseTTL:     time.Minute,
			Engine:       render.NewEngine(renderCfg, tr, comp, nil),
			Planner:      pipeline.TemplatePlanner{},
			Scriptwriter: pipeline.TemplateScriptwriter{},
			ScratchRoot:  scratch,
			Logger:       logging.Nop(),
		},
		store:      store,
		queue:      queue,
		transcoder: tr,
		locker:     locker,
		scratch:    scratch,
	}
}

func (h *harness) newRenderJob(t *testing.T, projectID string, fcpxml, edl bool) *models.RenderJob {
	t.Helper()
	job := &models.RenderJob{ID: "job-" + projectID, ProjectID: projectID, ExportFCPXML: fcpxml, ExportEDL: edl}
	if err := h.store.CreateRenderJob(context.Background(), job); err != nil {
		t.Fatalf("CreateRenderJob: %v", err)
	}
	return job
}

func (h *harness) projectStatus(t *testing.T, id string) string {
	t.Helper()
	p, err := h.store.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return p.Status
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir leaked %d entries", len(entries))
	}
}

// failProjectStatusWrites makes the next `times` project status updates to
// status fail; a negative count fails every one.
func failProjectStatusWrites(t *testing.T, store *models.Store, status string, times int) {
	t.Helper()
	var mu sync.Mutex
	failed := 0
	err := store.DB().Callback().Update().Before("gorm:update").Register("test:fail_project_"+status, func(db *gorm.DB) {
		if db.Statement.Table != "project" {
			return
		}
		fields, ok := db.Statement.Dest.(map[string]interface{})
		if !ok || fields["status"] != status {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if times >= 0 && failed >= times {
			return
		}
		failed++
		db.AddError(errors.New("write refused"))
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}
