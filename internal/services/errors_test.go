package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"explainer/internal/history"
	"explainer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncodingFailure, "encoding", "scene 3", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEncodingFailure) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encoding", "scene 3", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want history.Status
	}{
		{"invalid script", services.Wrap(services.ErrInvalidScript, "init", "validate", "no scenes", nil), history.StatusRejected},
		{"no segments", services.Wrap(services.ErrNoValidSegments, "encoding", "", "all skipped", nil), history.StatusFailed},
		{"cancelled", fmt.Errorf("render: %w", context.Canceled), history.StatusCancelled},
		{"deadline", fmt.Errorf("render: %w", context.DeadlineExceeded), history.StatusCancelled},
		{"stage timeout", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "",
			services.Wrap(services.ErrTimeout, "concatenating", "concat", "exceeded 1s", context.DeadlineExceeded)), history.StatusFailed},
		{"nil", nil, history.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.FailureStatus(tt.err); got != tt.want {
				t.Fatalf("FailureStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "encoding")
	ctx = services.WithSceneID(ctx, 7)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "encoding" {
		t.Fatalf("unexpected stage %q %v", stage, ok)
	}
	if scene, ok := services.SceneIDFromContext(ctx); !ok || scene != 7 {
		t.Fatalf("unexpected scene id %d %v", scene, ok)
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
	if services.WithStage(ctx, "") != ctx {
		t.Fatal("expected empty stage to leave context untouched")
	}
}
