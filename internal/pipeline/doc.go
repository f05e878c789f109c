// Package pipeline streams timestamped rigid body motion snapshots through
// the sensitivity matrices of a store and accumulates one metric series per
// requested kind.
//
// Snapshots are validated per kind and buffered; every BatchSize snapshots
// each kind's buffer is flushed through a single batched matrix product. A
// snapshot that fails validation for a kind is recorded as a Skip and the
// run goes on. Timestamps must strictly increase; the pipeline never
// reorders input.
//
// This package is the composition root of the numeric core: it imports
// sensitivity, optics, rbm, metric and blob, and none of those import
// pipeline.
package pipeline
