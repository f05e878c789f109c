// Package sensitivity loads, validates and indexes the precomputed linear
// sensitivity matrices that map concatenated segment rigid body motions to
// optical metrics.
//
// A Store is built once from an artifact and is read-only afterwards, so it
// may be shared between goroutines without locking. Reloading an artifact
// means building a new Store.
//
// Dependency rule: sensitivity depends on metric, segment, units and blob.
// It never depends on the pipeline or on export.
package sensitivity
