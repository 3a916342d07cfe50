package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clusterlink"
	"clusterlink/internal/notify"
	"clusterlink/reconcile/diff"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// requestClusters issues one poll and returns immediately. The completion is
// applied on the loop in completion order, so overlapping polls are allowed.
func (m *Manager) requestClusters(ctx context.Context, r *run) {
	m.pollSeq++
	seq, epoch := m.pollSeq, m.epoch

	pollCtx, span := m.tracer.Start(ctx, "clusters.poll", trace.WithAttributes(
		attribute.Int64("clusterlink.poll.seq", int64(seq)),
	))
	slog.Info("Retrieving remote clusters.", "poll", seq)
	m.emit("poll.request", fmt.Sprintf("poll %d", seq))

	go func() {
		records, err := m.deps.API.ListClusters(pollCtx)
		posted := r.post(pollCtx, func() {
			m.finishPoll(pollCtx, span, seq, epoch, records, err)
		})
		if !posted {
			span.SetAttributes(attribute.Bool("clusterlink.poll.discarded", true))
			span.End()
		}
	}()
}

func (m *Manager) finishPoll(ctx context.Context, span trace.Span, seq, epoch uint64, records []clusterlink.ClusterRecord, err error) {
	defer span.End()

	// A logout or restart since the request makes the response stale.
	if !m.loggedIn || epoch != m.epoch {
		span.SetAttributes(attribute.Bool("clusterlink.poll.discarded", true))
		m.emit("poll.ignored", fmt.Sprintf("poll %d answered after logout", seq))
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.onAPIError(err)
		return
	}

	span.SetAttributes(attribute.Int("clusterlink.poll.clusters", len(records)))
	if applyErr := m.applyClusters(ctx, records); applyErr != nil {
		span.RecordError(applyErr)
		span.SetStatus(codes.Error, applyErr.Error())
	}
	m.emit("poll.applied", fmt.Sprintf("poll %d: table version %d, %d devices", seq, m.table.version, len(m.table.devices)))
}

// onAPIError surfaces a failed poll once. The table is left as it was.
func (m *Manager) onAPIError(err error) {
	text := errorText(err)
	slog.Warn("Retrieving remote clusters failed.", "err", err)
	m.deps.Notifier.Show(notify.ErrorMessage(text))
	m.emit("poll.error", text)
}

func errorText(err error) string {
	var apiErr *clusterlink.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// applyClusters reconciles the table against a full cluster list. A nil list
// removes every device.
func (m *Manager) applyClusters(ctx context.Context, records []clusterlink.ClusterRecord) error {
	online := diff.Online(records)
	changes := diff.Compute(m.table.devices, online)
	slog.Info("Parsed remote clusters.",
		"online", len(online),
		"removed", len(changes.Removed),
		"added", len(changes.Added),
		"updated", len(changes.Updated),
	)

	var errs []error
	for _, dev := range changes.Removed {
		dev.Disconnect()
		if err := dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device %q: %w", dev.Key(), err))
		}
		if err := m.deps.Registry.RemoveOutputDevice(dev.Key()); err != nil {
			errs = append(errs, fmt.Errorf("remove output device: %w", err))
		}
		delete(m.table.devices, dev.Key())
	}

	// Only online clusters get a device, so offline ones never show up as outputs.
	for _, rec := range changes.Added {
		dev := m.deps.NewDevice(rec)
		if err := m.deps.Registry.AddOutputDevice(dev); err != nil {
			errs = append(errs, fmt.Errorf("add output device: %w", err))
			if err := dev.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close device %q: %w", dev.Key(), err))
			}
			continue
		}
		m.table.devices[rec.ClusterID] = dev
	}

	for _, u := range changes.Updated {
		u.Device.SetHostName(u.Record.HostName)
	}

	if !changes.Empty() {
		m.table.version++
	}

	m.connectActiveMachine(ctx)

	err := errors.Join(errs...)
	m.fail(err)
	return err
}

// connectActiveMachine binds the active machine to a device, if one matches.
func (m *Manager) connectActiveMachine(ctx context.Context) {
	machine, _ := m.deps.Machines.ActiveMachine()
	outcome, err := m.resolver.Resolve(ctx, machine, m.table)
	if err != nil {
		m.emit("resolve.error", err.Error())
		m.fail(fmt.Errorf("connect active machine: %w", err))
		return
	}
	m.emit("resolve."+outcome.String(), machine)
}
