package reconcile

import (
	"context"

	"clusterlink"
	"clusterlink/device"
	"clusterlink/internal/notify"
	"clusterlink/reconcile/resolve"
)

// ClusterLister fetches the clusters of the logged-in account.
// Errors reported by the server are *clusterlink.APIError.
// Production: cloudapi.Client
// Testing: fake.ClusterLister with hand-completed requests
type ClusterLister interface {
	ListClusters(ctx context.Context) ([]clusterlink.ClusterRecord, error)
}

// LoginState reports login transitions.
// Production/testing: session.LoginState
type LoginState interface {
	LoggedIn() bool
	SubscribeLogin() (<-chan bool, func())
}

// ActiveMachine reports the machine currently in use and signals when it changes.
// Production/testing: session.ActiveMachine
type ActiveMachine interface {
	ActiveMachine() (string, bool)
	SubscribeActiveMachine() (<-chan struct{}, func())
}

// MetadataStore reads and writes per-machine metadata.
// Production: sqlite.MetadataStore
// Testing: fake.MetadataStore
type MetadataStore = resolve.MetadataStore

// Notifier shows user-facing messages. Fire-and-forget.
// Production: notify.Log
// Testing: fake.Notifier
type Notifier interface {
	Show(msg notify.Message)
}

// OutputRegistry is the host's list of output devices.
// Production: registry.Registry
// Testing: fake.Registry
type OutputRegistry interface {
	AddOutputDevice(d *device.Device) error
	RemoveOutputDevice(key string) error
}

// DeviceFactory builds the device for a newly online cluster.
type DeviceFactory func(rec clusterlink.ClusterRecord) *device.Device

// Deps are the collaborators of a Manager. All are required.
type Deps struct {
	API       ClusterLister
	Metadata  MetadataStore
	Registry  OutputRegistry
	Notifier  Notifier
	Login     LoginState
	Machines  ActiveMachine
	NewDevice DeviceFactory
}
