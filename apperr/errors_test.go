package apperr_test

import (
	"errors"
	"strings"
	"testing"

	"VideoPipeline-server/apperr"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("exit status 1")
	err := apperr.Wrap(apperr.ErrTranscode, "editor", "concat", "ffmpeg failed", base)
	if !errors.Is(err, apperr.ErrTranscode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to be retained, got %v", err)
	}
	for _, fragment := range []string{"editor", "concat", "ffmpeg failed", "exit status 1"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapWithoutMarker(t *testing.T) {
	err := apperr.Wrap(nil, "", "", "", nil)
	if err.Error() != "pipeline failure" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("io"), false},
		{apperr.Wrap(apperr.ErrUpload, "editor", "put", "", nil), false},
		{apperr.Wrap(apperr.ErrTranscode, "editor", "mux", "", nil), false},
		{apperr.Wrap(apperr.ErrLeaseHeld, "editor", "lease", "", nil), false},
		{apperr.Wrap(apperr.ErrNotFound, "director", "load", "", nil), true},
		{apperr.Wrap(apperr.ErrEmptyInput, "editor", "load", "", nil), true},
		{apperr.Wrap(apperr.ErrInvalidTransition, "editor", "start", "", nil), true},
		{apperr.Wrap(apperr.ErrProviderUnavailable, "imagelab", "generate", "", nil), true},
	}
	for _, tt := range tests {
		if got := apperr.Permanent(tt.err); got != tt.want {
			t.Fatalf("Permanent(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
