// Package publish coordinates post-publish workflow transitions: it walks a
// published page to its local assets, shared assets, and linked navigation
// node, transitioning or revision-locking each as needed. A Coordinator is
// constructed fresh for each run; its memoization sets guarantee at-most-one
// transition per item per run and are never shared across runs.
package publish
