// Package captable replays an equity ledger into ownership views.
//
// Every function is a pure fold over already-loaded events: no I/O, no shared
// state. The current snapshot and the evolution series are produced by the
// same accumulator, so the last evolution entry always equals the current
// snapshot for the same ledger.
package captable
