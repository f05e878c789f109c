// Package stats computes descriptive statistics over metric time series:
// root mean square, moments over the most recent samples, and Welch power
// spectral density estimates.
//
// Dependency rule: stats depends on metric and gonum only.
package stats
