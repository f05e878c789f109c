// Package rbm owns the rigid body motion data model: the six degree of
// freedom state of one segment, the ordered per-instant snapshot of the
// mirror segments and the timestamped records fed to the pipeline.
//
// Dependency rule: rbm depends on segment and units only. Sensitivity
// matrices and transforms live in their own packages.
package rbm
