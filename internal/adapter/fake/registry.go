package fake

import (
	"fmt"
	"slices"
	"sync"

	"clusterlink/device"

	"github.com/containerd/errdefs"
)

// Registry is an in-memory output device registry.
type Registry struct {
	CallRecorder

	mu      sync.Mutex
	devices map[string]*device.Device

	AddErr    func(d *device.Device) error
	RemoveErr func(key string) error
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*device.Device)}
}

func (r *Registry) AddOutputDevice(d *device.Device) error {
	r.record("AddOutputDevice", d.Key())
	if r.AddErr != nil {
		if err := r.AddErr(d); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.Key()]; ok {
		return fmt.Errorf("output device %q: %w", d.Key(), errdefs.ErrAlreadyExists)
	}
	r.devices[d.Key()] = d
	return nil
}

func (r *Registry) RemoveOutputDevice(key string) error {
	r.record("RemoveOutputDevice", key)
	if r.RemoveErr != nil {
		if err := r.RemoveErr(key); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[key]; !ok {
		return fmt.Errorf("output device %q: %w", key, errdefs.ErrNotFound)
	}
	delete(r.devices, key)
	return nil
}

// Keys returns the registered keys sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.devices))
	for k := range r.devices {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Device returns the registered device for key, or nil.
func (r *Registry) Device(key string) *device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[key]
}
