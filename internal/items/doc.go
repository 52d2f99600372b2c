// Package items models the transient workflow item examined during a single
// coordination run: its snapshot of CMS metadata, its asset classification,
// and its terminal outcome within the run. Items are never persisted; only
// their side effects are, through the transition executor.
package items
