// Package solution sequences a vision graph: it loads the engine binary and
// graph descriptor, applies option changes, pushes frames, and relays result
// packets to an attached listener.
//
// The sequencing is written against the Graph interface so it can be exercised
// without a real engine binary; WasmGraph is the production implementation
// over an engine.Instance.
package solution
