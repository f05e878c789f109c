// Package optics is the numeric kernel of the linear optical model. It maps
// concatenated segment rigid body motions to optical metrics by applying a
// sensitivity matrix, one state at a time or as a batch, and provides the
// wavefront and piston reductions used on the resulting metric vectors.
//
// Every product goes through sensitivity.Matrix.Project so single samples and
// batches share one floating point code path. Inputs are never padded or
// truncated: a state whose length differs from the matrix input dimension is
// rejected with ErrDimensionMismatch.
//
// Dependency rule: optics depends on sensitivity, rbm, metric, segment and
// units. It holds no state and performs no I/O.
package optics
