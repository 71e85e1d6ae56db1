// Package store defines the persistence interfaces the rest of the system
// depends on (task and checkpoint records), the shared error vocabulary for
// store implementations, and transaction plumbing over database/sql.
// Implementations live under internal/platform.
package store
