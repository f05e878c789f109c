// Package export turns metric time series into row/column tables and whole
// series objects and hands them to sinks: delimited text, gob objects,
// SQLite runs and blob stores.
//
// A sink writes one artifact and is not safe for concurrent use; callers
// serialise writers per artifact, across processes with LockedFile.
//
// Dependency rule: export depends on metric, db, blob, monitoring and
// timeutil.
package export
