// Package graphruntime hosts precompiled vision-graph engines (MediaPipe-style
// WASM binaries) in a Go process.
//
// The graph engine itself is an opaque collaborator: a compiled processing
// pipeline reached only through a small exported ABI (load graph, configure,
// attach listener, process frame). This library supplies everything around it:
// asset fetching and verification, wazero-based loading, initialization
// sequencing, frame submission, and result-packet delivery.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	graphruntime/        Root package with Memory, Allocator, and Frame contracts
//	├── engine/          Low-level wazero integration and graph ABI validation
//	├── solution/        Facade sequencing engine load, graph load, and frames
//	├── pose/            Pose-estimation configuration layered on solution
//	├── packet/          Wire codec for change requests and result packets
//	├── assets/          Asset loaders, checksum-verified fetcher, pack archives
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Run pose estimation over a frame:
//
//	engineWASM, _ := assets.NewFromDisk("/opt/pose/pose_engine.wasm")
//	descriptor, _ := assets.NewFromDisk("/opt/pose/pose_graph.binarypb")
//
//	p, err := pose.New(pose.Config{EngineWASM: engineWASM, Descriptor: descriptor})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	p.OnResults(ctx, func(r pose.Result) {
//	    fmt.Println(len(r.Landmarks), "landmarks")
//	})
//	err = p.Send(ctx, &graphruntime.Frame{Pixels: rgba, Width: w, Height: h})
//
// # Thread Safety
//
// Solution serializes Initialize, Send, and Close internally. engine.Instance
// is NOT thread-safe and should be used by a single goroutine, or access must
// be synchronized.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Frames are copied into guest
// memory for each process call and freed immediately after; the high-water mark
// is set by the largest frame submitted.
package graphruntime
