package cloudapi

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"clusterlink"
	"clusterlink/device"
	"clusterlink/internal/clock"
)

// DefaultStatusInterval is how often a connected cluster's status is refreshed.
const DefaultStatusInterval = 10 * time.Second

// StatusReader fetches the live status of one cluster.
// Production: *Client
// Testing: httptest-backed *Client
type StatusReader interface {
	ClusterStatus(ctx context.Context, clusterID string) (clusterlink.ClusterStatus, error)
}

var (
	_ device.Link   = (*StatusLink)(nil)
	_ device.Closer = (*StatusLink)(nil)
)

// StatusLink keeps a connected device's cluster status fresh. Up starts a
// watcher that fetches immediately and then on every tick; Down stops it.
type StatusLink struct {
	reader    StatusReader
	clusterID string
	clock     clock.Clock
	interval  time.Duration
	onChange  func(clusterlink.ClusterStatus)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	last   clusterlink.ClusterStatus
	synced bool
}

// StatusLinkOption configures a StatusLink.
type StatusLinkOption func(*StatusLink)

// WithStatusClock sets the clock that drives refreshes.
func WithStatusClock(c clock.Clock) StatusLinkOption {
	return func(l *StatusLink) {
		l.clock = c
	}
}

// WithStatusChange replaces the default handler, which logs every status
// change at info level. fn runs on the watcher goroutine.
func WithStatusChange(fn func(clusterlink.ClusterStatus)) StatusLinkOption {
	return func(l *StatusLink) {
		l.onChange = fn
	}
}

// WithStatusInterval overrides DefaultStatusInterval.
func WithStatusInterval(d time.Duration) StatusLinkOption {
	return func(l *StatusLink) {
		l.interval = d
	}
}

func NewStatusLink(reader StatusReader, clusterID string, opts ...StatusLinkOption) *StatusLink {
	l := &StatusLink{
		reader:    reader,
		clusterID: clusterID,
		clock:     clock.Real(),
		interval:  DefaultStatusInterval,
		onChange:  logStatusChange,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Up starts the status watcher. No-op when already up or closed.
func (l *StatusLink) Up() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.watch(ctx, l.done)
}

// Down stops the status watcher and waits for it to exit.
func (l *StatusLink) Down() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the watcher for good. Later Up calls are ignored.
func (l *StatusLink) Close() error {
	l.Down()
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Status returns the most recent status and whether one was fetched yet.
func (l *StatusLink) Status() (clusterlink.ClusterStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.synced
}

func (l *StatusLink) watch(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := l.clock.Ticker(l.interval)
	defer ticker.Stop()

	l.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.refresh(ctx)
		}
	}
}

func (l *StatusLink) refresh(ctx context.Context) {
	status, err := l.reader.ClusterStatus(ctx, l.clusterID)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Fetching cluster status failed.", "cluster", l.clusterID, "err", err)
		}
		return
	}

	l.mu.Lock()
	changed := !l.synced || !sameStatus(l.last, status)
	l.last = status
	l.synced = true
	l.mu.Unlock()

	if changed && l.onChange != nil {
		l.onChange(status)
	}
}

func sameStatus(a, b clusterlink.ClusterStatus) bool {
	return a.ClusterID == b.ClusterID && a.Jobs == b.Jobs && slices.Equal(a.Printers, b.Printers)
}

func logStatusChange(status clusterlink.ClusterStatus) {
	printers := make([]string, 0, len(status.Printers))
	for _, p := range status.Printers {
		printers = append(printers, p.Name+"="+p.Status)
	}
	slog.Info("Cluster status changed.",
		"cluster", status.ClusterID,
		"printers", strings.Join(printers, ","),
		"jobs", status.Jobs,
	)
}
