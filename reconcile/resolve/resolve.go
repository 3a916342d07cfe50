// Package resolve decides which device the active machine should be connected to.
//
// A stored cluster binding always wins. Without one, the machine's local network
// key is matched against the devices and the first match becomes the new binding.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"clusterlink"
)

// Device is the part of a device the resolver drives.
type Device interface {
	Key() string
	IsConnected() bool
	Connect()
	MatchesNetworkKey(networkKey string) bool
}

// Table is a read-only view of the device table.
type Table interface {
	Lookup(key string) (Device, bool)
	// Devices returns every device in ascending key order.
	Devices() []Device
}

// MetadataStore reads and writes per-machine metadata.
type MetadataStore interface {
	Metadata(ctx context.Context, machine, key string) (string, bool, error)
	SetMetadata(ctx context.Context, machine, key, value string) error
}

// Outcome is the terminal result of one resolution.
type Outcome uint8

const (
	OutcomeNoMachine Outcome = iota
	OutcomeAlreadyConnected
	OutcomeReconnected
	OutcomeBound
	OutcomeNoNetworkKey
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoMachine:
		return "no-machine"
	case OutcomeAlreadyConnected:
		return "already-connected"
	case OutcomeReconnected:
		return "reconnected"
	case OutcomeBound:
		return "bound"
	case OutcomeNoNetworkKey:
		return "no-network-key"
	case OutcomeNoMatch:
		return "no-match"
	default:
		return "unknown"
	}
}

// Connected reports whether the outcome left the machine with a connected device.
func (o Outcome) Connected() bool {
	return o == OutcomeAlreadyConnected || o == OutcomeReconnected || o == OutcomeBound
}

// Resolver binds the active machine to a device.
type Resolver struct {
	store MetadataStore
}

func New(store MetadataStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve connects the machine to its bound device, or binds it by network key.
// An empty machine ID means no machine is active. A missing match is not an error;
// only metadata store failures are returned.
func (r *Resolver) Resolve(ctx context.Context, machine string, table Table) (Outcome, error) {
	if machine == "" {
		return OutcomeNoMachine, nil
	}

	stored, ok, err := r.store.Metadata(ctx, machine, clusterlink.MetaClusterID)
	if err != nil {
		return OutcomeNoMatch, fmt.Errorf("read stored cluster of %q: %w", machine, err)
	}
	if ok && stored != "" {
		if dev, found := table.Lookup(stored); found {
			if dev.IsConnected() {
				return OutcomeAlreadyConnected, nil
			}
			dev.Connect()
			return OutcomeReconnected, nil
		}
	}

	return r.bindByNetworkKey(ctx, machine, table)
}

func (r *Resolver) bindByNetworkKey(ctx context.Context, machine string, table Table) (Outcome, error) {
	networkKey, ok, err := r.store.Metadata(ctx, machine, clusterlink.MetaNetworkKey)
	if err != nil {
		return OutcomeNoMatch, fmt.Errorf("read network key of %q: %w", machine, err)
	}
	if !ok || networkKey == "" {
		return OutcomeNoNetworkKey, nil
	}

	for _, dev := range table.Devices() {
		if !dev.MatchesNetworkKey(networkKey) {
			continue
		}
		if err := r.store.SetMetadata(ctx, machine, clusterlink.MetaClusterID, dev.Key()); err != nil {
			return OutcomeNoMatch, fmt.Errorf("store cluster binding of %q: %w", machine, err)
		}
		slog.Info("Bound machine to cluster by network key.", "machine", machine, "cluster", dev.Key())
		dev.Connect()
		return OutcomeBound, nil
	}
	return OutcomeNoMatch, nil
}
