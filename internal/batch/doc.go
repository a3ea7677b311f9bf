// Package batch holds the data model threaded through a batch run: step
// records, the batch state that owns the two step collections, and the
// external run input that seeds it.
//
// Collections are addressed through the typed Collection accessors rather
// than path strings, so every stage declares exactly which field it reads and
// replaces. The state is only ever mutated by swapping a whole collection for
// the output of a map stage; positional order is preserved.
package batch
