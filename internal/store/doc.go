// Package store is the SQLite-backed reference implementation of the cms
// collaborator contracts: item metadata, checkout locking, workflow
// transitions with optimistic revision checks, the relationship graph,
// folder site restrictions, and pending-to-live change events.
package store
