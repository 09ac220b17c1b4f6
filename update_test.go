package extupdate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jpalmerr/extupdate/internal/server"
	"github.com/jpalmerr/extupdate/status"
)

func TestUpdate_Success(t *testing.T) {
	var seen []status.UpdateState
	var mu sync.Mutex

	var m *Monitor
	installer := func(ctx context.Context, ext Extension, version string) error {
		got, _ := m.Snapshot().Get(ext.Name())
		mu.Lock()
		seen = append(seen, got.State)
		mu.Unlock()
		return nil
	}

	m = newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(installer),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	if err := m.Update(context.Background(), "ext"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if len(seen) != 1 || seen[0] != status.StateUpdating {
		t.Errorf("state during install = %v, want [%v]", seen, status.StateUpdating)
	}
	got, _ := m.Snapshot().Get("ext")
	if got.State != status.StateUpdatedNeedsRestart {
		t.Errorf("state = %v, want %v", got.State, status.StateUpdatedNeedsRestart)
	}
	if got.Acknowledged {
		t.Error("Acknowledged = true, want false after a state change")
	}
}

func TestUpdate_InstallerError(t *testing.T) {
	installErr := errors.New("download failed")
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(context.Context, Extension, string) error { return installErr }),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	err := m.Update(context.Background(), "ext")
	if !errors.Is(err, installErr) {
		t.Errorf("Update() error = %v, want wrapping %v", err, installErr)
	}
	got, _ := m.Snapshot().Get("ext")
	if got.State != status.StateError {
		t.Errorf("state = %v, want %v", got.State, status.StateError)
	}
}

func TestUpdate_InstallerPanic(t *testing.T) {
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(context.Context, Extension, string) error { panic("boom") }),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	err := m.Update(context.Background(), "ext")
	if err == nil {
		t.Fatal("Update() expected error after installer panic")
	}
	if !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("error = %q, want it to carry a correlation_id", err)
	}
	got, _ := m.Snapshot().Get("ext")
	if got.State != status.StateError {
		t.Errorf("state = %v, want %v", got.State, status.StateError)
	}
}

func TestUpdate_Refused(t *testing.T) {
	noop := func(context.Context, Extension, string) error { return nil }

	tests := []struct {
		name      string
		extension string
		state     status.UpdateState // "" leaves the entry absent
		installer Installer
		wantErr   error
	}{
		{"unknown extension", "missing", status.StateUpdateAvailable, noop, ErrUnknownExtension},
		{"no installer", "ext", status.StateUpdateAvailable, nil, ErrNoInstaller},
		{"no status", "ext", "", noop, ErrNotUpdateAvailable},
		{"up to date", "ext", status.StateUpToDate, noop, ErrNotUpdateAvailable},
		{"already updating", "ext", status.StateUpdating, noop, ErrNotUpdateAvailable},
		{"needs restart", "ext", status.StateUpdatedNeedsRestart, noop, ErrNotUpdateAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithExtension(mustExtension(t, "ext"))}
			if tt.installer != nil {
				opts = append(opts, WithInstaller(tt.installer))
			}
			m := newTestMonitor(t, opts...)
			if tt.state != "" {
				m.Dispatch(status.SetState{Name: "ext", State: tt.state})
			}
			before := m.Snapshot()

			err := m.Update(context.Background(), tt.extension)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if m.Snapshot() != before {
				t.Error("refused update must not change the snapshot")
			}
		})
	}
}

func TestServerUpdate_MapsErrors(t *testing.T) {
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(context.Context, Extension, string) error { return nil }),
	)
	update := m.serverUpdate(context.Background())

	if err := update(context.Background(), "missing"); !errors.Is(err, server.ErrNotFound) {
		t.Errorf("update(missing) error = %v, want %v", err, server.ErrNotFound)
	}
	if err := update(context.Background(), "ext"); !errors.Is(err, server.ErrConflict) {
		t.Errorf("update(ext) error = %v, want %v", err, server.ErrConflict)
	}
}

func TestServerUpdate_RunsInBackground(t *testing.T) {
	release := make(chan struct{})
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(ctx context.Context, ext Extension, version string) error {
			<-release
			return nil
		}),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	if err := m.serverUpdate(context.Background())(context.Background(), "ext"); err != nil {
		t.Fatalf("update() error = %v", err)
	}

	got, _ := m.Snapshot().Get("ext")
	if got.State != status.StateUpdating {
		t.Errorf("state = %v, want %v while installer runs", got.State, status.StateUpdating)
	}

	close(release)
	m.installs.Wait()

	got, _ = m.Snapshot().Get("ext")
	if got.State != status.StateUpdatedNeedsRestart {
		t.Errorf("state = %v, want %v", got.State, status.StateUpdatedNeedsRestart)
	}
}

func TestUpdate_ConcurrentOnlyOneStarts(t *testing.T) {
	release := make(chan struct{})
	var calls sync.WaitGroup
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(ctx context.Context, ext Extension, version string) error {
			<-release
			return nil
		}),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		calls.Add(1)
		go func() {
			defer calls.Done()
			errs <- m.Update(context.Background(), "ext")
		}()
	}

	// exactly one call can be blocked in the installer; the rest fail fast
	refused := 0
	for refused < n-1 {
		if err := <-errs; !errors.Is(err, ErrNotUpdateAvailable) {
			t.Fatalf("Update() error = %v, want %v", err, ErrNotUpdateAvailable)
		}
		refused++
	}
	close(release)
	calls.Wait()

	if err := <-errs; err != nil {
		t.Errorf("winning Update() error = %v", err)
	}
}

func TestUpdate_PassesLatestVersion(t *testing.T) {
	ts := manifestServer(t, `{"version":"2.4.0"}`)
	var got string
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext", WithManifestURL(ts.URL))),
		WithInstaller(func(ctx context.Context, ext Extension, version string) error {
			got = version
			return nil
		}),
	)

	if err := m.CheckOnce(context.Background()); err != nil {
		t.Fatalf("CheckOnce() error = %v", err)
	}
	if err := m.Update(context.Background(), "ext"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got != "2.4.0" {
		t.Errorf("installer version = %q, want %q", got, "2.4.0")
	}
}

func TestDispatch_RefusesSetStateWhileUpdating(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(ctx context.Context, ext Extension, version string) error {
			close(started)
			<-release
			return nil
		}),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	done := make(chan error, 1)
	go func() { done <- m.Update(context.Background(), "ext") }()
	<-started

	if m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable}) {
		t.Error("Dispatch(SetState) = true during update, want false")
	}
	if err := m.Update(context.Background(), "ext"); !errors.Is(err, ErrNotUpdateAvailable) {
		t.Errorf("second Update() error = %v, want %v", err, ErrNotUpdateAvailable)
	}
	if !m.Acknowledge("ext") {
		t.Error("Acknowledge() = false during update, want true")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got, _ := m.Snapshot().Get("ext"); got.State != status.StateUpdatedNeedsRestart {
		t.Errorf("state = %v, want %v", got.State, status.StateUpdatedNeedsRestart)
	}
}

func TestUpdate_ForgottenDuringInstall(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := newTestMonitor(t,
		WithExtension(mustExtension(t, "ext")),
		WithInstaller(func(ctx context.Context, ext Extension, version string) error {
			close(started)
			<-release
			return nil
		}),
	)
	m.Dispatch(status.SetState{Name: "ext", State: status.StateUpdateAvailable})

	done := make(chan error, 1)
	go func() { done <- m.Update(context.Background(), "ext") }()
	<-started

	if !m.Forget("ext") {
		t.Fatal("Forget() = false, want true")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if _, ok := m.Snapshot().Get("ext"); ok {
		t.Error("update outcome recreated a forgotten extension")
	}
}
