// Package errors provides structured error types for the graph runtime.
//
// Every error carries a Phase (where in the pipeline it happened: fetch, load,
// graph, process, ...) and a Kind (what went wrong). Two errors match under
// errors.Is when Phase and Kind are equal, so callers can branch on categories
// without string matching:
//
//	if errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseFetch, Kind: rterrors.KindChecksumMismatch}) {
//	    // re-download the asset
//	}
package errors
