// Package registry is the host's list of output devices.
package registry

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"clusterlink/device"

	"github.com/containerd/errdefs"
)

// Registry holds output devices by key. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*device.Device
}

func New() *Registry {
	return &Registry{devices: make(map[string]*device.Device)}
}

// AddOutputDevice registers d. Adding a key twice is an ErrAlreadyExists.
func (r *Registry) AddOutputDevice(d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.Key()]; ok {
		return fmt.Errorf("add output device %q: %w", d.Key(), errdefs.ErrAlreadyExists)
	}
	r.devices[d.Key()] = d
	slog.Debug("Output device added.", "key", d.Key(), "host", d.HostName())
	return nil
}

// RemoveOutputDevice deregisters key. Unknown keys are an ErrNotFound.
func (r *Registry) RemoveOutputDevice(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[key]; !ok {
		return fmt.Errorf("remove output device %q: %w", key, errdefs.ErrNotFound)
	}
	delete(r.devices, key)
	slog.Debug("Output device removed.", "key", key)
	return nil
}

// Get returns the device registered under key.
func (r *Registry) Get(key string) (*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[key]
	if !ok {
		return nil, fmt.Errorf("output device %q: %w", key, errdefs.ErrNotFound)
	}
	return d, nil
}

// List returns all devices sorted by key.
func (r *Registry) List() []*device.Device {
	r.mu.RLock()
	out := make([]*device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *device.Device) int { return cmp.Compare(a.Key(), b.Key()) })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
