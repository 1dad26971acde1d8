// Package dict holds the record-level building blocks of user dictionaries:
// the value codec (pack/unpack of commits, weight and clock stamp), the
// weight decay dynamics used to compare freshness across clock epochs, the
// record-key construction and sanitation rules, and version comparison for
// the legacy-format upgrade threshold.
//
// Everything in this package is pure and deterministic; all I/O lives in the
// db engines and the lever package.
package dict
