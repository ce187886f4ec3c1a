// Package facts defines the validation-record model for AOT code caching.
//
// A fact is an immutable statement that a specific relationship among
// runtime symbols (classes and methods) held when a method was compiled.
// Facts are totally ordered: first by kind, then by the kind's fields in
// declared order, with handle identity standing in for symbol equality.
// The order backs the per-session deduplication set.
//
// This package contains type definitions, the record order, and the
// canonical wire codec only. All other internal packages import facts;
// facts imports nothing internal.
//
// Key design constraints:
//   - Records are values, never mutated after construction
//   - Symbols appear in wire records only as small integer IDs (never
//     as raw handles), so a persisted record stream is self-contained
//   - Canonical JSON (UTF-16 key order, NFC strings, no floats) is the
//     ONLY serialization used for persistence and digests
package facts
