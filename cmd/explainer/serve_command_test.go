package main

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"explainer/internal/api"
	"explainer/internal/history"
	"explainer/internal/logging"
)

func TestRunServerRecoversAndServes(t *testing.T) {
	env := setupCLITestEnv(t)

	store, err := history.Open(env.cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	if _, err := store.Create(context.Background(), history.Render{ID: "stuck", Title: "Stuck"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, env.cfg, logging.NewNop(), func(addr string) { addrCh <- addr })
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("runServer exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/api/renders/stuck")
	if err != nil {
		t.Fatalf("GET render: %v", err)
	}
	var payload api.RenderItemResponse
	err = json.NewDecoder(resp.Body).Decode(&payload)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Item.Status != string(history.StatusFailed) {
		t.Fatalf("expected interrupted render marked failed, got %q", payload.Item.Status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunServerRefusesSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)
	lock := flock.New(filepath.Join(env.cfg.Paths.StateDir, serveLockName))
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer lock.Unlock()

	err = runServer(context.Background(), env.cfg, logging.NewNop(), nil)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}
