package clusterlink

import "fmt"

// ClusterRecord is a snapshot of one remote cluster as returned by the cloud API.
// Records are rebuilt on every poll and never mutated.
type ClusterRecord struct {
	ClusterID string
	HostName  string
	IsOnline  bool

	// Informational only; not compared when diffing.
	HostGUID    string
	HostVersion string
	Status      string
}

func (r ClusterRecord) String() string {
	state := "offline"
	if r.IsOnline {
		state = "online"
	}
	return fmt.Sprintf("%s(%s, %s)", r.ClusterID, r.HostName, state)
}

// ClusterStatus is the live state of a connected cluster.
type ClusterStatus struct {
	ClusterID string
	Printers  []PrinterStatus
	Jobs      int
}

// PrinterStatus describes one printer reported by a cluster.
type PrinterStatus struct {
	UUID   string
	Name   string
	Status string
}

// Well-known machine metadata keys.
const (
	// MetaClusterID holds the sticky cluster binding of a machine.
	MetaClusterID = "cloud_cluster_id"
	// MetaNetworkKey holds the local network key of a machine. Read-only for this module.
	MetaNetworkKey = "network_key"
)
