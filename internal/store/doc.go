// Package store defines interfaces for avatar persistence.
//
// Two sinks are involved in every successful ingestion: an ObjectStore that
// holds the optimized image bytes under a deterministic path, and a
// ProfileStore that records which URL a user's profile currently points at.
// Implementations live under internal/platform.
package store
