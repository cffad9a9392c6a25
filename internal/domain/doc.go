// Package domain contains the core entities and error taxonomy of avatar
// ingestion, independent of any specific infrastructure or delivery mechanism.
package domain
