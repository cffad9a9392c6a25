// Package postgres provides the PostgreSQL implementation of store.ProfileStore
// and the embedded schema migrations it depends on.
package postgres
