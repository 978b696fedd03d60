// Package permission implements the portal's pure permission evaluator.
//
// Capabilities form a closed, enumerated set mapped to bit positions in a
// compact [Set]; the wire format of named booleans is decoded with an
// explicit unknown-key-is-false rule so [CanPerform] stays exhaustively
// testable. CanPerform is referentially transparent: no state, no side
// effects, identical results for identical inputs, and it never panics;
// unknown inputs resolve to a denial.
package permission
