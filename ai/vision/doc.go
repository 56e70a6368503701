// Package vision provides the HTTP client for the local vision sidecar.
//
// The sidecar serves the three image embedding models and the primary OCR
// engine behind a small JSON API. Payload preprocessing (resizing, color
// normalization) happens sidecar-side; the client sends the original
// encoded image bytes.
package vision
