package device

import (
	"log/slog"
	"sync"

	"clusterlink/internal/check"
)

// Device is the local stateful proxy for one online cluster.
// It is owned by the reconcile loop; the mutex only makes snapshots from
// other goroutines safe.
type Device struct {
	key     string
	matcher Matcher
	link    Link

	mu       sync.Mutex
	hostName string
	state    State
	closed   bool
}

// Option configures a Device.
type Option func(*Device)

// WithLink sets the downstream link driven by Connect and Disconnect.
func WithLink(l Link) Option {
	return func(d *Device) {
		d.link = l
	}
}

// WithMatcher overrides the network key matching rule.
func WithMatcher(m Matcher) Option {
	return func(d *Device) {
		d.matcher = m
	}
}

// New creates a disconnected device for the cluster key.
func New(key, hostName string, opts ...Option) *Device {
	check.Assert(key != "", "device.New: key must not be empty")

	d := &Device{
		key:      key,
		hostName: hostName,
		matcher:  HostNamePrefix,
		link:     nopLink{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key returns the cluster ID this device represents.
func (d *Device) Key() string {
	return d.key
}

func (d *Device) HostName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostName
}

// SetHostName patches the host name after the remote record changed.
func (d *Device) SetHostName(hostName string) {
	d.mu.Lock()
	d.hostName = hostName
	d.mu.Unlock()
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) IsConnected() bool {
	return d.State() == StateConnected
}

// Connect brings the link up. No-op when already connected.
func (d *Device) Connect() {
	d.mu.Lock()
	if d.state == StateConnected || d.closed {
		d.mu.Unlock()
		return
	}
	d.state = d.state.Transition(StateConnected)
	d.mu.Unlock()

	d.link.Up()
	slog.Info("Connected to cluster.", "cluster", d.key, "host", d.HostName())
}

// Disconnect brings the link down. Safe to call in any state.
func (d *Device) Disconnect() {
	d.mu.Lock()
	if d.state == StateDisconnected {
		d.mu.Unlock()
		return
	}
	d.state = d.state.Transition(StateDisconnected)
	d.mu.Unlock()

	d.link.Down()
	slog.Info("Disconnected from cluster.", "cluster", d.key)
}

// MatchesNetworkKey reports whether the local network key refers to this device.
func (d *Device) MatchesNetworkKey(networkKey string) bool {
	return d.matcher(d.HostName(), networkKey)
}

// Close releases resources not tied to the connection. Callers disconnect first.
// Only the first call has an effect.
func (d *Device) Close() error {
	d.mu.Lock()
	check.Assert(d.state == StateDisconnected, "device.Close: device still connected")
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if c, ok := d.link.(Closer); ok {
		return c.Close()
	}
	return nil
}
