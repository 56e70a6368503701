// Package fusion collapses per-field vector distances into a single
// ranking score.
//
// Retrieval consults up to four embedding fields per candidate. Whichever
// subset of fields survives per-field threshold filtering selects a fixed
// weight vector, and the fused score is the weighted sum of the surviving
// distances. The mapping from subset to weights is a static table keyed by
// a field bitset, so every reachable combination is enumerable and the
// policy can be verified row by row.
//
// All functions are pure: same evidence in, same score out.
package fusion
