// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeServer blocks in ListenAndServe until Shutdown is called.
type fakeServer struct {
	startErr error
	done     chan struct{}
	shutdown bool
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, done: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.done
	return nil
}

func (f *fakeServer) Shutdown(_ context.Context) error {
	f.shutdown = true
	close(f.done)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newFakeServer(nil)
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
	if !server.shutdown {
		t.Error("expected Shutdown to be called")
	}
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	startErr := errors.New("address in use")
	svc := NewHTTPServerService(newFakeServer(startErr), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, startErr) {
		t.Errorf("expected wrapped start error, got %v", err)
	}
}
