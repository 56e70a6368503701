// Package ingestion turns note images into stored, indexed records.
//
// The Pipeline type manages the workflow for one image:
//   - Loading and decoding the image (the only fatal step)
//   - Deriving three visual embeddings and two OCR chains concurrently
//   - Persisting the assembled record in a single atomic write
//   - Syncing the per-field vector indexes to the stored record
//
// Derivations run on a shared worker pool and are best effort: a failed
// model or engine leaves its slot absent and is logged, never returned.
// Progress can be observed through a ProgressObserver; reported fractions
// never decrease within a run.
package ingestion
