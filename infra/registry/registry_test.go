package registry

import (
	"testing"

	"clusterlink/device"

	"github.com/containerd/errdefs"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := New()
	a := device.New("A", "h1")
	b := device.New("B", "h2")

	if err := r.AddOutputDevice(b); err != nil {
		t.Fatalf("add B: %v", err)
	}
	if err := r.AddOutputDevice(a); err != nil {
		t.Fatalf("add A: %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].Key() != "A" || list[1].Key() != "B" {
		t.Fatalf("List() = %v, want [A B]", list)
	}

	if err := r.RemoveOutputDevice("A"); err != nil {
		t.Fatalf("remove A: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	got, err := r.Get("B")
	if err != nil || got != b {
		t.Errorf("Get(B) = %v, %v", got, err)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := New()
	a := device.New("A", "h1")
	if err := r.AddOutputDevice(a); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{name: "duplicate add", run: func() error { return r.AddOutputDevice(device.New("A", "other")) }, check: errdefs.IsAlreadyExists},
		{name: "remove unknown", run: func() error { return r.RemoveOutputDevice("missing") }, check: errdefs.IsNotFound},
		{name: "get unknown", run: func() error { _, err := r.Get("missing"); return err }, check: errdefs.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if err == nil || !tt.check(err) {
				t.Errorf("error = %v, wrong classification", err)
			}
		})
	}
}
