package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clusterlink/internal/check"
	"clusterlink/internal/clock"
	"clusterlink/reconcile/resolve"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPollInterval is how often the cluster list is refreshed while logged in.
	DefaultPollInterval = 50 * time.Second
	// inboxCap bounds queued completions and queries. Posters block when full.
	inboxCap = 64
)

// ErrNotRunning is returned by queries against a stopped Manager.
var ErrNotRunning = errors.New("reconcile manager not running")

// Manager polls the cloud API and reconciles the device table against it.
type Manager struct {
	deps      Deps
	resolver  *resolve.Resolver
	clock     clock.Clock
	interval  time.Duration
	tracer    trace.Tracer
	onEvent   func(eventType, message string)
	onFailure func(error)

	mu      sync.Mutex
	running bool
	current *run

	// Owned by the loop goroutine.
	table    *table
	ticker   clock.Ticker
	loggedIn bool
	epoch    uint64
	pollSeq  uint64
}

// run is one Start/Stop cycle of the loop.
type run struct {
	cancel  context.CancelFunc
	inbox   chan func()
	done    chan struct{}
	stopErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock that creates the poll ticker.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithTracer sets the tracer for poll spans. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// WithOnEvent registers a hook called from the loop for every reconcile event.
func WithOnEvent(fn func(eventType, message string)) Option {
	return func(m *Manager) {
		m.onEvent = fn
	}
}

// WithOnFailure registers a hook called from the loop for collaborator failures.
func WithOnFailure(fn func(error)) Option {
	return func(m *Manager) {
		m.onFailure = fn
	}
}

// New creates a stopped Manager.
func New(deps Deps, opts ...Option) *Manager {
	check.Assert(deps.API != nil, "reconcile.New: API must not be nil")
	check.Assert(deps.Metadata != nil, "reconcile.New: Metadata must not be nil")
	check.Assert(deps.Registry != nil, "reconcile.New: Registry must not be nil")
	check.Assert(deps.Notifier != nil, "reconcile.New: Notifier must not be nil")
	check.Assert(deps.Login != nil, "reconcile.New: Login must not be nil")
	check.Assert(deps.Machines != nil, "reconcile.New: Machines must not be nil")
	check.Assert(deps.NewDevice != nil, "reconcile.New: NewDevice must not be nil")

	m := &Manager{
		deps:     deps,
		resolver: resolve.New(deps.Metadata),
		clock:    clock.Real(),
		interval: DefaultPollInterval,
		table:    newTable(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("clusterlink/reconcile")
	}
	return m
}

func (m *Manager) emit(eventType, message string) {
	if m.onEvent != nil {
		m.onEvent(eventType, message)
	}
	slog.Debug("reconcile event", "event", eventType, "message", message)
}

func (m *Manager) fail(err error) {
	if err == nil {
		return
	}
	if m.onFailure != nil {
		m.onFailure(err)
	}
	slog.Error("reconcile failure", "err", err)
}

// Running reports whether the Manager has been started and not stopped.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start subscribes to login and active-machine events, then evaluates the
// current login state on the loop. No-op when already running. Cancelling ctx
// ends the run the same way Stop does.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	loginCh, unsubLogin := m.deps.Login.SubscribeLogin()
	activeCh, unsubActive := m.deps.Machines.SubscribeActiveMachine()

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cancel: cancel,
		inbox:  make(chan func(), inboxCap),
		done:   make(chan struct{}),
	}
	m.current = r
	m.running = true

	go m.loop(runCtx, r, loginCh, activeCh, func() {
		unsubLogin()
		unsubActive()
	})
	slog.Info("Cluster reconciliation started.", "interval", m.interval)
	return nil
}

// Stop unsubscribes from events, disarms the poll timer and tears down every
// device. Responses to polls still in flight are discarded. No-op when not running.
// The returned error joins collaborator failures hit while draining.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	r := m.current
	m.running = false
	m.current = nil
	m.mu.Unlock()

	r.cancel()
	<-r.done
	slog.Info("Cluster reconciliation stopped.")
	return r.stopErr
}

// Devices returns a snapshot of the device table, served by the loop.
func (m *Manager) Devices(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return Snapshot{}, ErrNotRunning
	}

	reply := make(chan Snapshot, 1)
	if !r.post(ctx, func() { reply <- m.table.snapshot() }) {
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		return Snapshot{}, ErrNotRunning
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-r.done:
		return Snapshot{}, ErrNotRunning
	}
}

// post queues fn for the loop. It reports false if the run ended or ctx expired first.
func (r *run) post(ctx context.Context, fn func()) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- fn:
		return true
	case <-r.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) loop(ctx context.Context, r *run, loginCh <-chan bool, activeCh <-chan struct{}, unsubscribe func()) {
	defer close(r.done)
	defer m.release(r)

	m.onLoginStateChanged(ctx, r, m.deps.Login.LoggedIn())

	for {
		var tick <-chan time.Time
		if m.ticker != nil {
			tick = m.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			unsubscribe()
			r.stopErr = m.onLoginStateChanged(context.WithoutCancel(ctx), r, false)
			if r.stopErr != nil {
				slog.Warn("Draining devices on shutdown failed.", "err", r.stopErr)
			}
			return
		case fn := <-r.inbox:
			fn()
		case loggedIn, ok := <-loginCh:
			if !ok {
				loginCh = nil
				continue
			}
			m.onLoginStateChanged(ctx, r, loggedIn)
		case _, ok := <-activeCh:
			if !ok {
				activeCh = nil
				continue
			}
			m.emit("machine.changed", "active machine changed")
			m.connectActiveMachine(ctx)
		case <-tick:
			m.requestClusters(ctx, r)
		}
	}
}

// release marks the Manager stopped once r's loop has exited, whether Stop
// or the caller's context ended it. A later Start begins a fresh run.
func (m *Manager) release(r *run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == r {
		m.current = nil
		m.running = false
	}
}

// onLoginStateChanged arms polling on login and drains the table on logout.
func (m *Manager) onLoginStateChanged(ctx context.Context, r *run, loggedIn bool) error {
	slog.Info("Log in state changed.", "logged_in", loggedIn)
	m.emit("login.changed", fmt.Sprintf("logged in: %t", loggedIn))

	m.loggedIn = loggedIn
	m.epoch++
	if loggedIn {
		m.armTicker()
		m.requestClusters(ctx, r)
		return nil
	}

	m.disarmTicker()
	err := m.applyClusters(ctx, nil)
	m.emit("table.drained", "all clusters removed")
	return err
}

func (m *Manager) armTicker() {
	if m.ticker != nil {
		return
	}
	m.ticker = m.clock.Ticker(m.interval)
}

func (m *Manager) disarmTicker() {
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	m.ticker = nil
}
