// Package blob stores sensitivity artifacts and exported series as opaque
// objects addressed by key. Backends are a local directory, an in-memory
// map for tests and S3 (or any S3-compatible endpoint such as MinIO).
//
// Dependency rule: blob has no dependencies on other lom packages.
package blob
