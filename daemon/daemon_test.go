package daemon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clusterlink"
	"clusterlink/config"
	"clusterlink/device"
)

type cloudServer struct {
	*httptest.Server
	fail atomic.Bool
}

func newCloudServer(t *testing.T) *cloudServer {
	t.Helper()
	s := &cloudServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/connect/v1/clusters":
			if s.fail.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"errors": [{"title": "timeout"}, {"title": "auth expired"}]}`)
				return
			}
			io.WriteString(w, `{"data": [
				{"cluster_id": "A", "host_name": "host-a", "is_online": true},
				{"cluster_id": "B", "host_name": "host-b", "is_online": true},
				{"cluster_id": "C", "host_name": "host-c", "is_online": false}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/status"):
			io.WriteString(w, `{"data": {"printers": [], "print_jobs": []}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func writeConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startDaemon(t *testing.T, cfgPath string, cfg *config.Config, seed ...func(*Daemon)) (*Daemon, func() error) {
	t.Helper()
	d, err := New(cfgPath, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, fn := range seed {
		fn(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	stop := func() error {
		cancel()
		err := <-errc
		if closeErr := d.Close(); closeErr != nil {
			t.Errorf("Close() error = %v", closeErr)
		}
		return err
	}
	return d, stop
}

func TestDaemon_ReconcilesAndBindsActiveMachine(t *testing.T) {
	srv := newCloudServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	cfg := &config.Config{
		API:           config.API{BaseURL: srv.URL, Token: "secret"},
		DataRoot:      filepath.Join(dir, "data"),
		ActiveMachine: "m1",
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, cfgPath, cfg)

	d, stop := startDaemon(t, cfgPath, cfg, func(d *Daemon) {
		if err := d.Store().SetMetadata(context.Background(), "m1", clusterlink.MetaNetworkKey, "host-b._ultimaker._tcp.local."); err != nil {
			t.Fatal(err)
		}
	})

	eventually(t, func() bool { return d.Registry().Len() == 2 }, "two online clusters registered")
	eventually(t, func() bool {
		dev, err := d.Registry().Get("B")
		return err == nil && dev.IsConnected()
	}, "B connected")

	stored, ok, err := d.Store().Metadata(context.Background(), "m1", clusterlink.MetaClusterID)
	if err != nil || !ok || stored != "B" {
		t.Errorf("stored binding = %q, %t, %v; want B", stored, ok, err)
	}

	snap, err := d.Manager().Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	var states []string
	for _, dev := range snap.Devices {
		states = append(states, dev.Key+"="+dev.State.String())
	}
	if got := strings.Join(states, " "); got != "A="+device.StateDisconnected.String()+" B="+device.StateConnected.String() {
		t.Errorf("table = %q", got)
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.Manager().Running() {
		t.Error("manager still running after shutdown")
	}
	if n := d.Registry().Len(); n != 0 {
		t.Errorf("registry has %d devices after shutdown, want 0", n)
	}
}

func TestDaemon_ReloadLogsOut(t *testing.T) {
	srv := newCloudServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	cfg := &config.Config{
		API:      config.API{BaseURL: srv.URL, Token: "secret"},
		DataRoot: filepath.Join(dir, "data"),
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, cfgPath, cfg)

	d, stop := startDaemon(t, cfgPath, cfg)
	defer func() {
		if err := stop(); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	eventually(t, func() bool { return d.Registry().Len() == 2 }, "clusters registered")

	loggedOut := *cfg
	loggedOut.API.Token = ""
	writeConfig(t, cfgPath, &loggedOut)
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	eventually(t, func() bool { return d.Registry().Len() == 0 }, "registry drained after logout")
	if d.login.LoggedIn() {
		t.Error("login state still true after reload")
	}
}

func TestDaemon_APIErrorIsNotified(t *testing.T) {
	srv := newCloudServer(t)
	srv.fail.Store(true)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	cfg := &config.Config{
		API:      config.API{BaseURL: srv.URL, Token: "secret"},
		DataRoot: filepath.Join(dir, "data"),
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, cfgPath, cfg)

	d, stop := startDaemon(t, cfgPath, cfg)
	defer func() { _ = stop() }()

	eventually(t, func() bool { return len(d.Notifications()) == 1 }, "error notification")
	if got := d.Notifications()[0].Text; got != "timeout. auth expired" {
		t.Errorf("notification = %q, want %q", got, "timeout. auth expired")
	}
	if d.Registry().Len() != 0 {
		t.Errorf("registry not empty after failed poll")
	}
}

func TestDaemon_ReloadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := &config.Config{DataRoot: filepath.Join(dir, "data")}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}

	d, err := New(cfgPath, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	bad := *cfg
	bad.PollInterval = time.Second
	writeConfig(t, cfgPath, &bad)

	if err := d.Reload(); err == nil {
		t.Fatal("Reload() accepted an invalid config")
	}
}
