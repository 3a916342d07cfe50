// Package device holds the local proxy for one online remote cluster.
//
// A Device owns a two-state connection machine and a network-key predicate.
// Connection side effects go through a Link so the state machine stays testable.
package device
