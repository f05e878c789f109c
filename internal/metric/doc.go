// Package metric defines the closed set of optical metric kinds produced by
// the linear optical model, and the timestamped samples and series that carry
// their values from the pipeline to statistics and export.
//
// Dependency rule: metric depends on units and gonum/mat only.
package metric
