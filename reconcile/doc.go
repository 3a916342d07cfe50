// Package reconcile keeps the local device table in step with the clusters
// the cloud API reports, and keeps the active machine connected to its cluster.
//
// A single loop goroutine owns the table. Timer ticks, API completions, login
// and active-machine events all funnel through it, so nothing else locks the
// table. Diffing lives in reconcile/diff; device selection in reconcile/resolve.
package reconcile
