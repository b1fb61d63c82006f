// Package store owns the reminder collection and its persistence.
//
// The on-disk contract is a JSON array of reminder objects; the collection
// is always loaded and saved wholesale (no partial writes). Collection-level
// state (the heartbeat marker) lives in a separate small blob so the array
// format stays stable for external editors.
//
// Two persistence drivers exist:
//   - "file": JSON files with atomic tmp+rename writes, one dated backup
//     per civil day, and an optional byte-identical public mirror
//   - "sqlite": single database file (optional build tag)
package store
