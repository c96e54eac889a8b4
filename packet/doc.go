// Package packet implements the wire codec spoken across the host/graph
// boundary.
//
// Three shapes cross the boundary, all little-endian:
//
//   - change requests: queued option updates applied before a graph (re)load
//   - wants: the ordered stream-name list a listener subscribes to
//   - result vectors: tagged packets (landmark lists, rects, raw bytes)
//     emitted by the graph, zipped with the wants list by index
//
// Every decoder has a matching encoder so fixtures and tests can produce
// byte-exact frames without a live graph engine.
package packet
