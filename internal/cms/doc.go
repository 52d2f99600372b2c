// Package cms defines the narrow contracts the workflow core consumes from
// the surrounding content-management system: item metadata lookup, transition
// execution, relationship resolution, folder/site policy, checkout locking,
// and change-event cleanup. Implementations live in internal/store (SQLite)
// and internal/cms/inmem (tests).
package cms
