// Package reingest re-runs the ingestion pipeline over every stored note,
// refreshing embeddings and transcripts after a model or OCR engine upgrade.
//
// A pass walks the store in ascending id order in batches, checkpointing
// after each batch so an interrupted run resumes where it stopped. Notes
// whose source image has gone missing keep serving their stored vectors
// and are reported at the end of the pass.
package reingest
