package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("p1", "renders", "r1.mp4"); got != "projects/p1/renders/r1.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.mp4":    "video/mp4",
		"a.PNG":    "image/png",
		"a.fcpxml": "application/xml",
		"a.edl":    "text/plain; charset=utf-8",
		"a.bin":    "application/octet-stream",
	}
	for key, want := range tests {
		if got := ContentTypeFor(key); got != want {
			t.Fatalf("ContentTypeFor(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestFileStorePutAndPutFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	u, err := store.Put(ctx, "projects/p1/exports/r1.edl", []byte("TITLE: x\n"), ContentTypeFor("r1.edl"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if u != "http://localhost:8080/static/projects/p1/exports/r1.edl" {
		t.Fatalf("unexpected url %q", u)
	}
	if b, _ := os.ReadFile(filepath.Join(root, "projects", "p1", "exports", "r1.edl")); string(b) != "TITLE: x\n" {
		t.Fatalf("unexpected contents %q", b)
	}

	src := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.PutFile(ctx, "projects/p1/renders/r1.mp4", src, "video/mp4"); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"../escape", "", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, []byte("x"), "text/plain"); !errors.Is(err, apperr.ErrUpload) {
			t.Fatalf("key %q: expected upload error, got %v", key, err)
		}
	}
}

func TestFileStoreWithoutBaseURLReturnsFileURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	u, err := store.Put(context.Background(), "k/v.txt", []byte("x"), "text/plain")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/k/v.txt") {
		t.Fatalf("unexpected url %q", u)
	}
}

func TestLocalLockerExclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()
	lease, err := locker.Acquire(ctx, RenderLeaseKey("r1"), time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, RenderLeaseKey("r1"), time.Minute); !errors.Is(err, apperr.ErrLeaseHeld) {
		t.Fatalf("expected lease held, got %v", err)
	}
	if _, err := locker.Acquire(ctx, RenderLeaseKey("r2"), time.Minute); err != nil {
		t.Fatalf("other key should be free: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := locker.Acquire(ctx, RenderLeaseKey("r1"), time.Minute); err != nil {
		t.Fatalf("released key should be free: %v", err)
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }
	if _, err := locker.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := locker.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("expired lease should be reclaimable: %v", err)
	}
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	locker := NewRedisLocker(client)
	key := ProjectLeaseKey("director", "p1")

	first, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, key, time.Minute); !errors.Is(err, apperr.ErrLeaseHeld) {
		t.Fatalf("expected lease held, got %v", err)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("lease should carry a ttl, got %v", ttl)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}

	// A stale holder must not release someone else's lease.
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale Release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("stale release removed the current lease")
	}
	_ = second.Release(ctx)
}

func TestTaskOptions(t *testing.T) {
	cfg := config.QueueConfig{MaxRetry: 3, Timeout: 5 * time.Minute, Retention: time.Hour}

	lookup := func(opts []asynq.Option, typ asynq.OptionType) any {
		for _, o := range opts {
			if o.Type() == typ {
				return o.Value()
			}
		}
		return nil
	}

	images := TaskOptions(cfg, QueueImages)
	if q := lookup(images, asynq.QueueOpt); q != QueueImages {
		t.Fatalf("unexpected queue %v", q)
	}
	if r := lookup(images, asynq.MaxRetryOpt); r != 3 {
		t.Fatalf("unexpected max retry %v", r)
	}
	render := TaskOptions(cfg, QueueRender)
	if r := lookup(render, asynq.MaxRetryOpt); r != 0 {
		t.Fatalf("render jobs must not retry, got %v", r)
	}
}

func TestNewTaskPayload(t *testing.T) {
	yes := true
	task, err := NewTask(TypeRenderVideo, RenderPayload{ProjectID: "p1", RenderJobID: "r1", ExportEDL: &yes})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if task.Type() != TypeRenderVideo {
		t.Fatalf("unexpected type %q", task.Type())
	}
	var raw map[string]any
	if err := json.Unmarshal(task.Payload(), &raw); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if raw["projectId"] != "p1" || raw["renderJobId"] != "r1" || raw["exportEdl"] != true {
		t.Fatalf("unexpected payload %v", raw)
	}
	if _, ok := raw["exportFcpxml"]; ok {
		t.Fatal("unset export flag should be omitted")
	}
}
