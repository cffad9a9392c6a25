// Package api exposes the avatar task queue over HTTP: submitting ingestion
// tasks, polling their status, and reading queue statistics. It performs no
// authentication and trusts its caller.
package api
