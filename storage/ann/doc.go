// Package ann implements storage.VectorIndex on top of vecgo.
//
// Each embedding field gets its own vecgo index sized to that field's
// dimension. Indexes use cosine distance over unit vectors; reported
// distances are 1 - cos(query, neighbour), so 0 is identical and 2 is
// opposite.
//
// The flat (exact) index is the default. Collections large enough to
// make exhaustive search slow can opt into HNSW, trading a little recall
// for sublinear lookups.
//
// The index holds derived state only. It is rebuilt from the note
// repository on startup and updated after every successful ingestion.
package ann
