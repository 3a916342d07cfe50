// Package daemon wires the cluster reconciliation manager to its production
// collaborators and runs it until the context is cancelled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"clusterlink"
	"clusterlink/config"
	"clusterlink/device"
	"clusterlink/infra/cloudapi"
	"clusterlink/infra/registry"
	"clusterlink/infra/sqlite"
	"clusterlink/internal/logging"
	"clusterlink/internal/notify"
	"clusterlink/internal/session"
	"clusterlink/reconcile"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
)

// Daemon owns the long-lived components of clusterlinkd.
type Daemon struct {
	cfgPath string
	debug   bool

	mu  sync.Mutex
	cfg *config.Config

	store    *sqlite.MetadataStore
	client   *cloudapi.Client
	registry *registry.Registry
	notifier *notify.Log
	login    *session.LoginState
	machines *session.ActiveMachine
	manager  *reconcile.Manager
}

// Option configures a Daemon.
type Option func(*options)

type options struct {
	debug       bool
	managerOpts []reconcile.Option
	clientOpts  []cloudapi.ClientOption
	linkOpts    []cloudapi.StatusLinkOption
}

// WithDebugLogging pins the log level to debug across reloads.
func WithDebugLogging() Option {
	return func(o *options) {
		o.debug = true
	}
}

// WithManagerOptions passes extra options to the reconcile manager.
func WithManagerOptions(opts ...reconcile.Option) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}

// WithClientOptions passes extra options to the cloud API client.
func WithClientOptions(opts ...cloudapi.ClientOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithStatusLinkOptions passes extra options to every device's status link.
func WithStatusLinkOptions(opts ...cloudapi.StatusLinkOption) Option {
	return func(o *options) {
		o.linkOpts = append(o.linkOpts, opts...)
	}
}

// New opens the metadata store and builds every component from cfg.
// cfgPath is re-read by Reload.
func New(cfgPath string, cfg *config.Config, opts ...Option) (*Daemon, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.DataRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	store, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	clientOpts := append([]cloudapi.ClientOption{
		cloudapi.WithToken(cfg.API.Token),
		cloudapi.WithTimeout(cfg.API.Timeout),
	}, o.clientOpts...)
	client, err := cloudapi.NewClient(cfg.API.BaseURL, clientOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d := &Daemon{
		cfgPath:  cfgPath,
		debug:    o.debug,
		cfg:      cfg,
		store:    store,
		client:   client,
		registry: registry.New(),
		notifier: notify.NewLog(nil),
		login:    session.NewLoginState(cfg.LoggedIn()),
		machines: session.NewActiveMachine(cfg.ActiveMachine),
	}

	linkOpts := o.linkOpts
	managerOpts := append([]reconcile.Option{
		reconcile.WithPollInterval(cfg.PollInterval),
	}, o.managerOpts...)
	d.manager = reconcile.New(reconcile.Deps{
		API:      client,
		Metadata: store,
		Registry: d.registry,
		Notifier: d.notifier,
		Login:    d.login,
		Machines: d.machines,
		NewDevice: func(rec clusterlink.ClusterRecord) *device.Device {
			link := cloudapi.NewStatusLink(client, rec.ClusterID, linkOpts...)
			return device.New(rec.ClusterID, rec.HostName, device.WithLink(link))
		},
	}, managerOpts...)
	return d, nil
}

// Store returns the machine metadata store.
func (d *Daemon) Store() *sqlite.MetadataStore { return d.store }

// Registry returns the output device registry.
func (d *Daemon) Registry() *registry.Registry { return d.registry }

// Manager returns the reconciliation manager.
func (d *Daemon) Manager() *reconcile.Manager { return d.manager }

// Notifications returns recently shown user-facing messages.
func (d *Daemon) Notifications() []notify.Message { return d.notifier.Recent() }

// Run starts the manager, reloads the config on SIGHUP and blocks until ctx
// is cancelled. Every device is torn down before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if err := d.manager.Start(ctx); err != nil {
		return fmt.Errorf("start reconcile manager: %w", err)
	}
	notifySystemd(systemd.SdNotifyReady)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				notifySystemd(systemd.SdNotifyReloading)
				if err := d.Reload(); err != nil {
					slog.Error("Reloading config failed.", "path", d.cfgPath, "err", err)
				}
				notifySystemd(systemd.SdNotifyReady)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		notifySystemd(systemd.SdNotifyStopping)
		slog.Info("Stopping cluster reconciliation.")
		return d.manager.Stop()
	})
	return g.Wait()
}

// Reload re-reads the config file and publishes login and active machine
// transitions. The poll interval and data root only change on restart.
func (d *Daemon) Reload() error {
	next, err := config.Load(d.cfgPath)
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.cfg
	d.cfg = next
	d.mu.Unlock()

	if d.debug {
		next.LogLevel = logging.LevelDebug
	}
	if next.LogLevel != prev.LogLevel || next.LogFormat != prev.LogFormat {
		if err := logging.Configure(next.LogLevel, next.LogFormat); err != nil {
			return err
		}
	}
	if next.PollInterval != prev.PollInterval || next.DataRoot != prev.DataRoot || next.API.BaseURL != prev.API.BaseURL {
		slog.Warn("Config change needs a restart to take effect.",
			"poll_interval", next.PollInterval, "data_root", next.DataRoot, "base_url", next.API.BaseURL)
	}

	d.client.SetToken(next.API.Token)
	d.login.SetLoggedIn(next.LoggedIn())
	d.machines.Select(next.ActiveMachine)
	slog.Info("Config reloaded.", "logged_in", next.LoggedIn(), "active_machine", next.ActiveMachine)
	return nil
}

// Close releases the metadata store. Call after Run returns.
func (d *Daemon) Close() error {
	return d.store.Close()
}

// Run loads the config at cfgPath and runs a daemon until ctx is cancelled.
func Run(ctx context.Context, cfgPath string, opts ...Option) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.debug {
		cfg.LogLevel = logging.LevelDebug
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	d, err := New(cfgPath, cfg, opts...)
	if err != nil {
		return err
	}
	slog.Info("Starting clusterlink daemon.", "config", cfgPath, "data_root", cfg.DataRoot, "logged_in", cfg.LoggedIn())

	runErr := d.Run(ctx)
	return errors.Join(runErr, d.Close())
}

func notifySystemd(state string) {
	if _, err := systemd.SdNotify(false, state); err != nil {
		slog.Error("Failed to notify systemd.", "state", state, "err", err)
	}
}
