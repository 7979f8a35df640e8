// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): page splitting, preprocessing, extraction
// engines, artifact storage and the run journal.
//
// Implementations live under internal/adapters/driven.
package driven
