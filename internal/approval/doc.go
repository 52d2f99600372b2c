// Package approval is the interactive workflow surface: checkout and
// check-in with local-content ownership transfer, single-item transitions,
// the cascade-approve gate over a page's shared and linked assets, and
// asynchronous bulk approval.
package approval
