// Package reembed re-embeds the records of an existing export file with a
// different embedding model or dimension count.
//
// Records are read from the input file, embedded again in batches, and
// appended to a separate export writer. Chunk text, metadata and vector ids
// are carried over unchanged, so the new file can be upserted over the old
// vectors.
package reembed
