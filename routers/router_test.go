package routers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/routers"
	"VideoPipeline-server/routers/api"
	"VideoPipeline-server/service"
	"VideoPipeline-server/testsupport"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeQueue struct {
	mu         sync.Mutex
	storyboard []service.StoryboardPayload
	images     []service.ImagesPayload
	voiceover  []service.VoiceoverPayload
	music      []service.MusicPayload
	render     []service.RenderPayload
	err        error
}

func (q *fakeQueue) EnqueueStoryboard(ctx context.Context, p service.StoryboardPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.storyboard = append(q.storyboard, p)
	return "t-storyboard", q.err
}

func (q *fakeQueue) EnqueueImages(ctx context.Context, p service.ImagesPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.images = append(q.images, p)
	return "t-images", q.err
}

func (q *fakeQueue) EnqueueVoiceover(ctx context.Context, p service.VoiceoverPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.voiceover = append(q.voiceover, p)
	return "t-voiceover", q.err
}

func (q *fakeQueue) EnqueueMusic(ctx context.Context, p service.MusicPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.music = append(q.music, p)
	return "t-music", q.err
}

func (q *fakeQueue) EnqueueRender(ctx context.Context, p service.RenderPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.render = append(q.render, p)
	return "t-render", q.err
}

type fixture struct {
	router  *gin.Engine
	handler *api.Handler
	store   *models.Store
	queue   *fakeQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testsupport.MustOpenStore(t)
	queue := &fakeQueue{}
	h := &api.Handler{
		Store:         store,
		Queue:         queue,
		Logger:        logging.Nop(),
		VoiceoverMock: true,
		MusicMock:     false,
		PollInterval:  10 * time.Millisecond,
	}
	return &fixture{router: routers.InitRouter(h), handler: h, store: store, queue: queue}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/api/projects", `{"title":"Spring launch","brief":"shoes","aspectRatio":"16:9"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Project models.Project `json:"project"`
		TaskID  string         `json:"task_id"`
	}
	decodeBody(t, w, &resp)
	if resp.Project.AspectRatio != models.AspectHorizontal || resp.TaskID != "t-storyboard" {
		t.Fatalf("unexpected response %+v", resp)
	}
	stored, err := f.store.GetProject(context.Background(), resp.Project.ID)
	if err != nil || stored.Status != models.ProjectStatusCreated {
		t.Fatalf("stored project = %+v, %v", stored, err)
	}
	if len(f.queue.storyboard) != 1 || f.queue.storyboard[0].Brief != "shoes" {
		t.Fatalf("storyboard jobs = %+v", f.queue.storyboard)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"brief":"x"}`, `{"title":"t","aspectRatio":"diagonal"}`, `not json`} {
		if w := f.do(t, http.MethodPost, "/v1/api/projects", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status %d", body, w.Code)
		}
	}
	if len(f.queue.storyboard) != 0 {
		t.Fatal("invalid requests must not enqueue")
	}
}

func TestGetProjectGraphOrdersScenes(t *testing.T) {
	f := newFixture(t)
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	testsupport.NewScenes(t, f.store, p.ID,
		testsupport.SceneSpec{Index: 2, DurationMs: 1000},
		testsupport.SceneSpec{Index: 0, DurationMs: 1000},
		testsupport.SceneSpec{Index: 1, DurationMs: 1000},
	)
	w := f.do(t, http.MethodGet, "/v1/api/projects/"+p.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Project         models.Project `json:"project"`
		TotalDurationMs int            `json:"total_duration_ms"`
	}
	decodeBody(t, w, &resp)
	for i, s := range resp.Project.Scenes {
		if s.Index != i {
			t.Fatalf("scene %d has index %d", i, s.Index)
		}
	}
	if resp.TotalDurationMs != 3000 {
		t.Fatalf("total %d", resp.TotalDurationMs)
	}

	if w := f.do(t, http.MethodGet, "/v1/api/projects/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing project status %d", w.Code)
	}
}

func TestGenerateImagesDefaultsToAllScenes(t *testing.T) {
	f := newFixture(t)
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	scenes := testsupport.NewScenes(t, f.store, p.ID,
		testsupport.SceneSpec{Index: 1, DurationMs: 1000},
		testsupport.SceneSpec{Index: 0, DurationMs: 1000},
	)

	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/images", ""); w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	got := f.queue.images[0].SceneIDs
	if len(got) != 2 || got[0] != scenes[1].ID || got[1] != scenes[0].ID {
		t.Fatalf("scene ids = %v, want index order", got)
	}

	w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/images", `{"sceneIds":["`+scenes[0].ID+`"]}`)
	if w.Code != http.StatusAccepted || len(f.queue.images[1].SceneIDs) != 1 {
		t.Fatalf("subset request: %d %+v", w.Code, f.queue.images)
	}

	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/images", `{"sceneIds":["other"]}`); w.Code != http.StatusNotFound {
		t.Fatalf("foreign scene status %d", w.Code)
	}

	empty := testsupport.NewProject(t, f.store, models.AspectVertical)
	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+empty.ID+"/images", ""); w.Code != http.StatusConflict {
		t.Fatalf("no scenes status %d", w.Code)
	}
}

func TestVoiceoverAndMusicTriggers(t *testing.T) {
	f := newFixture(t)
	p := testsupport.NewProject(t, f.store, models.AspectVertical)

	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/voiceover", ""); w.Code != http.StatusAccepted {
		t.Fatalf("voiceover status %d", w.Code)
	}
	if !f.queue.voiceover[0].UseMock {
		t.Fatal("unset useMock should take the handler default")
	}
	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/music", `{"mood":"calm","useMock":false}`); w.Code != http.StatusAccepted {
		t.Fatalf("music status %d", w.Code)
	}
	m := f.queue.music[0]
	if m.Mood == nil || *m.Mood != "calm" || m.UseMock {
		t.Fatalf("music payload %+v", m)
	}
	if w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/music", ""); w.Code != http.StatusAccepted {
		t.Fatalf("music status %d", w.Code)
	}
	if f.queue.music[1].UseMock {
		t.Fatal("unset useMock on music should take the music default, not the voiceover one")
	}
	if w := f.do(t, http.MethodPost, "/v1/api/projects/missing/music", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing project status %d", w.Code)
	}
}

func TestCreateRender(t *testing.T) {
	f := newFixture(t)
	p := testsupport.NewProject(t, f.store, models.AspectVertical)

	w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/render", `{"exportEdl":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var resp struct {
		RenderJob models.RenderJob `json:"render_job"`
	}
	decodeBody(t, w, &resp)
	if resp.RenderJob.Status != models.RenderStatusProcessing || !resp.RenderJob.ExportEDL || resp.RenderJob.ExportFCPXML {
		t.Fatalf("job = %+v", resp.RenderJob)
	}
	payload := f.queue.render[0]
	if payload.RenderJobID != resp.RenderJob.ID || payload.ExportEDL == nil || !*payload.ExportEDL {
		t.Fatalf("payload = %+v", payload)
	}

	w = f.do(t, http.MethodGet, "/v1/api/renders/"+resp.RenderJob.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get render status %d", w.Code)
	}
}

func TestCreateRenderEnqueueFailureClosesJob(t *testing.T) {
	f := newFixture(t)
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	f.queue.err = errors.New("redis down")

	w := f.do(t, http.MethodPost, "/v1/api/projects/"+p.ID+"/render", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	var jobs []models.RenderJob
	if err := f.store.DB().Where("project_id = ?", p.ID).Find(&jobs).Error; err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != models.RenderStatusFailed {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestRenderLogWebSocket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	job := &models.RenderJob{ID: "job-ws", ProjectID: p.ID}
	if err := f.store.CreateRenderJob(ctx, job); err != nil {
		t.Fatalf("CreateRenderJob: %v", err)
	}
	if err := f.store.AppendRenderLog(ctx, job.ID, "starting render"); err != nil {
		t.Fatalf("AppendRenderLog: %v", err)
	}

	srv := httptest.NewServer(f.router)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/renders/job-ws/wss", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type event struct {
		Status string   `json:"status"`
		Lines  []string `json:"lines"`
	}
	var first event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Status != models.RenderStatusProcessing || len(first.Lines) != 1 {
		t.Fatalf("first event %+v", first)
	}

	if err := f.store.AppendRenderLog(ctx, job.ID, "uploaded mp4"); err != nil {
		t.Fatalf("AppendRenderLog: %v", err)
	}
	if err := f.store.CompleteRenderJob(ctx, job.ID, map[string]string{models.ArtifactMP4: "http://x/y.mp4"}); err != nil {
		t.Fatalf("CompleteRenderJob: %v", err)
	}

	var lines []string
	status := ""
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for status != models.RenderStatusCompleted {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		lines = append(lines, ev.Lines...)
		status = ev.Status
	}
	if len(lines) != 1 || lines[0] != "uploaded mp4" {
		t.Fatalf("streamed lines %v", lines)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func streamOnly(h *api.Handler, done chan<- struct{}) *httptest.Server {
	r := gin.New()
	r.GET("/renders/:render_id/wss", func(c *gin.Context) {
		h.RenderLogWebSocket(c)
		close(done)
	})
	return httptest.NewServer(r)
}

func TestRenderLogWebSocketReturnsWhenClientLeaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	job := &models.RenderJob{ID: "job-gone", ProjectID: p.ID}
	if err := f.store.CreateRenderJob(ctx, job); err != nil {
		t.Fatalf("CreateRenderJob: %v", err)
	}

	done := make(chan struct{})
	srv := streamOnly(f.handler, done)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/renders/job-gone/wss", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read first: %v", err)
	}
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler still polling after the client disconnected")
	}
}

func TestRenderLogWebSocketStreamTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testsupport.NewProject(t, f.store, models.AspectVertical)
	job := &models.RenderJob{ID: "job-stuck", ProjectID: p.ID}
	if err := f.store.CreateRenderJob(ctx, job); err != nil {
		t.Fatalf("CreateRenderJob: %v", err)
	}

	h := *f.handler
	h.StreamTimeout = 100 * time.Millisecond
	done := make(chan struct{})
	srv := streamOnly(&h, done)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/renders/job-stuck/wss", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("expected going-away close, got %v", err)
		}
		break
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the stream timeout")
	}
}
