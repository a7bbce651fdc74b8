// Package redisson implements sentinel-backed topology management for a
// redis master/replica deployment: discovering the deployment through a set
// of sentinel nodes, keeping an up-to-date view of it as failovers, replica
// changes, fleet membership changes and DNS rebindings happen, and keeping
// the per-node connection pools aligned through the MasterReplicaEntry
// adapter.
//
// The entry point is NewSentinelManager, which bootstraps from the seed
// sentinels and runs the reconciliation and DNS monitors until Shutdown.
package redisson
