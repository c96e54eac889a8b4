package solution

import (
	"context"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/packet"
)

// Graph is the engine-side surface a Solution sequences against. Implementations
// are not goroutine-safe; the Solution serializes all calls.
type Graph interface {
	// LoadGraph installs a compiled graph descriptor.
	LoadGraph(ctx context.Context, descriptor []byte) error

	// Configure applies queued parameter changes.
	Configure(ctx context.Context, requests []packet.ChangeRequest) error

	// AttachListener tells the graph which output streams to emit.
	AttachListener(ctx context.Context, wants []string) error

	// Process submits one frame. Result emission happens synchronously
	// during this call, via the handler set with SetEmitHandler.
	Process(ctx context.Context, frame *graphruntime.Frame) error

	// SetEmitHandler installs the callback invoked with the encoded result
	// vector and its timestamp. Must be set before Process.
	SetEmitHandler(fn func(data []byte, timestamp int64))

	Close(ctx context.Context) error
}
