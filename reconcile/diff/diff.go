// Package diff computes the change set between the known device table and
// the clusters reported by the latest poll.
package diff

import (
	"cmp"
	"slices"

	"clusterlink"
)

// Tracked is a known device. Only the host name is compared.
type Tracked interface {
	Key() string
	HostName() string
}

// Update pairs a known device with the record that changed it.
type Update[D Tracked] struct {
	Device D
	Record clusterlink.ClusterRecord
}

// Changes is the delta between two tables. Apply Removed, then Added, then Updated.
type Changes[D Tracked] struct {
	Removed []D
	Added   []clusterlink.ClusterRecord
	Updated []Update[D]
}

// Empty reports whether the change set does nothing.
func (c Changes[D]) Empty() bool {
	return len(c.Removed) == 0 && len(c.Added) == 0 && len(c.Updated) == 0
}

// Compute partitions previous ∪ current into removed, added, updated and unchanged keys.
// Outputs are sorted by key.
func Compute[D Tracked](previous map[string]D, current map[string]clusterlink.ClusterRecord) Changes[D] {
	var c Changes[D]

	for key, dev := range previous {
		rec, ok := current[key]
		if !ok {
			c.Removed = append(c.Removed, dev)
			continue
		}
		if dev.HostName() != rec.HostName {
			c.Updated = append(c.Updated, Update[D]{Device: dev, Record: rec})
		}
	}
	for key, rec := range current {
		if _, ok := previous[key]; !ok {
			c.Added = append(c.Added, rec)
		}
	}

	slices.SortFunc(c.Removed, func(a, b D) int { return cmp.Compare(a.Key(), b.Key()) })
	slices.SortFunc(c.Added, func(a, b clusterlink.ClusterRecord) int { return cmp.Compare(a.ClusterID, b.ClusterID) })
	slices.SortFunc(c.Updated, func(a, b Update[D]) int { return cmp.Compare(a.Device.Key(), b.Device.Key()) })
	return c
}

// Online indexes the online records by cluster ID. Offline clusters are
// treated as absent.
func Online(records []clusterlink.ClusterRecord) map[string]clusterlink.ClusterRecord {
	out := make(map[string]clusterlink.ClusterRecord, len(records))
	for _, rec := range records {
		if rec.IsOnline {
			out[rec.ClusterID] = rec
		}
	}
	return out
}
