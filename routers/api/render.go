package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"VideoPipeline-server/models"
	"VideoPipeline-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CreateRender creates a RenderJob in processing and enqueues the Editor.
// POST /v1/api/projects/:project_id/render
func (h *Handler) CreateRender(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		ExportFCPXML bool `json:"exportFcpxml"`
		ExportEDL    bool `json:"exportEdl"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	if _, err := h.Store.GetProject(ctx, projectID); err != nil {
		h.writeError(c, err)
		return
	}

	job := &models.RenderJob{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Status:       models.RenderStatusProcessing,
		ExportFCPXML: req.ExportFCPXML,
		ExportEDL:    req.ExportEDL,
	}
	if err := h.Store.CreateRenderJob(ctx, job); err != nil {
		h.writeError(c, err)
		return
	}

	_, err := h.Queue.EnqueueRender(ctx, service.RenderPayload{
		ProjectID:    projectID,
		RenderJobID:  job.ID,
		ExportFCPXML: &req.ExportFCPXML,
		ExportEDL:    &req.ExportEDL,
	})
	if err != nil {
		// Nothing will ever pick the job up, so close it out.
		if ferr := h.Store.FailRenderJob(context.WithoutCancel(ctx), job.ID, "enqueue failed: "+err.Error()); ferr != nil {
			h.Logger.Error().Err(ferr).Str("render_job_id", job.ID).Msg("mark render job failed")
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"render_job": job})
}

// GetRender returns the job with its logs and artifacts.
// GET /v1/api/renders/:render_id
func (h *Handler) GetRender(c *gin.Context) {
	job, err := h.Store.GetRenderJob(c.Request.Context(), c.Param("render_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"render_job": job})
}

// renderEvent is what the websocket pushes: new log lines plus the current
// state of the job.
type renderEvent struct {
	RenderJobID string         `json:"render_job_id"`
	Status      string         `json:"status"`
	Lines       []string       `json:"lines"`
	Artifacts   map[string]any `json:"artifacts,omitempty"`
	Error       *string        `json:"error,omitempty"`
}

// RenderLogWebSocket streams a RenderJob's log lines as they are appended and
// closes after the job reaches a terminal state, the client goes away or
// StreamTimeout elapses.
// GET /renders/:render_id/wss
func (h *Handler) RenderLogWebSocket(c *gin.Context) {
	renderID := c.Param("render_id")

	job, err := h.Store.GetRenderJob(c.Request.Context(), renderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Str("render_job_id", renderID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The request context is not cancelled once the connection is hijacked,
	// so the stream owns its own lifetime.
	parent := context.WithoutCancel(c.Request.Context())
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if h.StreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, h.StreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	// Control frames are only handled while reading. A read error means the
	// peer is gone.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	push := func(j *models.RenderJob) error {
		lines := j.LogLines()
		ev := renderEvent{RenderJobID: j.ID, Status: j.Status, Lines: lines[sent:], Error: j.Error}
		if j.Terminal() {
			ev.Artifacts = j.Artifacts
		}
		sent = len(lines)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}
	if err := push(job); err != nil || job.Terminal() {
		closeSocket(conn, websocket.CloseNormalClosure, "render finished")
		return
	}

	interval := h.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	prevStatus := job.Status
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				closeSocket(conn, websocket.CloseGoingAway, "stream timeout")
			}
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		case <-ticker.C:
		}
		cur, err := h.Store.GetRenderJob(ctx, renderID)
		if err != nil {
			continue
		}
		if len(cur.Logs) != sent || cur.Status != prevStatus {
			if err := push(cur); err != nil {
				return
			}
			prevStatus = cur.Status
		}
		if cur.Terminal() {
			closeSocket(conn, websocket.CloseNormalClosure, "render finished")
			return
		}
	}
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func closeSocket(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
