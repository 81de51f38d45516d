// Package store defines the persistence interfaces for reports and users,
// plus the errors every implementation returns. Business logic depends on
// these interfaces and never on a concrete database.
package store
