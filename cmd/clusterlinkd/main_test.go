package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	cfgPath := filepath.Join(dir, "config.yaml")

	if _, err := run(t, "config", "init", "--config", cfgPath, "--token", "secret", "--machine", "m1"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := run(t, "config", "init", "--config", cfgPath); err == nil {
		t.Fatal("second config init without --force succeeded")
	}

	out, err := run(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"(set)", "m1", "50s"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Errorf("config show leaked the token:\n%s", out)
	}
}

func TestMachineCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := run(t, "config", "init", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}

	steps := [][]string{
		{"machine", "set-network-key", "m1", "host-a._ultimaker._tcp.local."},
		{"machine", "bind", "m1", "A"},
	}
	for _, args := range steps {
		if _, err := run(t, append(args, "--config", cfgPath)...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, err := run(t, "machine", "get", "m1", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cloud_cluster_id:") || !strings.Contains(out, "host-a._ultimaker._tcp.local.") {
		t.Errorf("machine get output:\n%s", out)
	}

	out, err = run(t, "machine", "list", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "m1") || !strings.Contains(out, " A ") {
		t.Errorf("machine list output:\n%s", out)
	}

	if _, err := run(t, "machine", "unbind", "m1", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "machine", "get", "m1", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "cloud_cluster_id") {
		t.Errorf("binding still present after unbind:\n%s", out)
	}
}

func TestClustersCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"errors": [{"title": "auth expired"}]}`)
			return
		}
		io.WriteString(w, `{"data": [
			{"cluster_id": "B", "host_name": "host-b", "is_online": false},
			{"cluster_id": "A", "host_name": "host-a", "is_online": true}
		]}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	cfgPath := filepath.Join(dir, "config.yaml")

	if _, err := run(t, "config", "init", "--config", cfgPath, "--base-url", srv.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "clusters", "--config", cfgPath); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("clusters while logged out error = %v", err)
	}

	if _, err := run(t, "config", "init", "--config", cfgPath, "--base-url", srv.URL, "--token", "wrong", "--force"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "clusters", "--config", cfgPath); err == nil || !strings.Contains(err.Error(), "auth expired") {
		t.Fatalf("clusters with bad token error = %v", err)
	}

	if _, err := run(t, "config", "init", "--config", cfgPath, "--base-url", srv.URL, "--token", "secret", "--force"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "clusters", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(out, "host-a") > strings.Index(out, "host-b") {
		t.Errorf("clusters not sorted by ID:\n%s", out)
	}

	out, err = run(t, "clusters", "--online", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "host-b") {
		t.Errorf("--online listed an offline cluster:\n%s", out)
	}
}
