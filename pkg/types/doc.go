// Package types defines the table catalog, entity documents, the Store,
// TableWriter and TableReader interfaces, and the standard errors of the
// timetable editing engine.
//
// A Document is one row of a catalog table. Child collections ride along in
// the Document under the child table's name, so a pattern document carries
// its pattern_stops, pattern_locations, pattern_location_groups and shapes,
// and a trip document carries its stop_times and frequencies.
package types
