package solution

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/engine"
	"github.com/visionpipe/graph-runtime/errors"
	"github.com/visionpipe/graph-runtime/packet"
)

// graphABI is the signature table every graph engine binary must export.
// Status results are zero on success.
const graphABI = `
	graph-load: func(ptr: u32, len: u32) -> s32;
	graph-configure: func(ptr: u32, len: u32) -> s32;
	graph-attach: func(ptr: u32, len: u32) -> s32;
	graph-process: func(ptr: u32, len: u32, width: u32, height: u32, ts: u64) -> s32;
	graph-close: func() -> s32;
`

// EmitNamespace and EmitName identify the host import the graph binary calls
// to deliver results.
const (
	EmitNamespace = "env"
	EmitName      = "graph-emit"
)

// WasmGraphConfig tunes engine creation for a graph binary.
type WasmGraphConfig struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 uses the
	// engine default.
	MemoryLimitPages uint32

	// StartFunctions overrides the instantiation start functions.
	// Emscripten-built binaries need []string{"_initialize"}.
	StartFunctions []string

	Logger *zap.Logger
}

// WasmGraph runs a graph engine binary inside wazero and exposes it through
// the Graph interface. Not goroutine-safe.
type WasmGraph struct {
	engine   *engine.Engine
	instance *engine.Instance
	logger   *zap.Logger

	emitMu sync.Mutex
	emit   func(data []byte, timestamp int64)

	closeOnce sync.Once
	closeErr  error
}

var _ Graph = (*WasmGraph)(nil)

// NewWasmGraph compiles and instantiates the engine binary, wiring the
// graph-emit host import and validating the export signatures.
func NewWasmGraph(ctx context.Context, engineWASM []byte, cfg *WasmGraphConfig) (*WasmGraph, error) {
	if cfg == nil {
		cfg = &WasmGraphConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eng, err := engine.NewWithConfig(ctx, &engine.Config{MemoryLimitPages: cfg.MemoryLimitPages})
	if err != nil {
		return nil, err
	}

	g := &WasmGraph{engine: eng, logger: logger}

	hostEmit := func(ctx context.Context, mod api.Module, ptr, length uint32, ts int64) {
		g.handleEmit(mod, ptr, length, ts)
	}
	if err := eng.RegisterFunc(EmitNamespace, EmitName, hostEmit); err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	mod, err := eng.Load(ctx, engineWASM)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	inst, err := mod.InstantiateWithConfig(ctx, &engine.InstanceConfig{
		StartFunctions: cfg.StartFunctions,
		ABI:            engine.MustParseABI(graphABI),
	})
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	g.instance = inst
	return g, nil
}

func (g *WasmGraph) handleEmit(mod api.Module, ptr, length uint32, ts int64) {
	g.emitMu.Lock()
	fn := g.emit
	g.emitMu.Unlock()
	if fn == nil {
		g.logger.Debug("emit with no handler attached", zap.Uint32("len", length))
		return
	}

	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		g.logger.Warn("emit points outside guest memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("len", length))
		return
	}

	// The guest may reuse the buffer after graph-emit returns.
	copied := make([]byte, len(data))
	copy(copied, data)
	fn(copied, ts)
}

func (g *WasmGraph) SetEmitHandler(fn func(data []byte, timestamp int64)) {
	g.emitMu.Lock()
	g.emit = fn
	g.emitMu.Unlock()
}

func (g *WasmGraph) LoadGraph(ctx context.Context, descriptor []byte) error {
	if len(descriptor) == 0 {
		return errors.InvalidInput(errors.PhaseGraph, "empty graph descriptor")
	}
	return g.callWithBytes(ctx, errors.PhaseGraph, "graph-load", descriptor)
}

func (g *WasmGraph) Configure(ctx context.Context, requests []packet.ChangeRequest) error {
	if len(requests) == 0 {
		return nil
	}
	encoded, err := packet.EncodeChangeRequests(requests)
	if err != nil {
		return err
	}
	return g.callWithBytes(ctx, errors.PhaseOptions, "graph-configure", encoded)
}

func (g *WasmGraph) AttachListener(ctx context.Context, wants []string) error {
	return g.callWithBytes(ctx, errors.PhaseListen, "graph-attach", packet.EncodeWants(wants))
}

func (g *WasmGraph) Process(ctx context.Context, frame *graphruntime.Frame) error {
	if frame == nil {
		return errors.InvalidInput(errors.PhaseProcess, "nil frame")
	}
	if err := frame.Validate(); err != nil {
		return err
	}

	ptr, err := g.instance.WriteBytes(ctx, frame.Pixels)
	if err != nil {
		return err
	}
	defer g.instance.Free(ctx, ptr)

	return g.instance.CallStatus(ctx, errors.PhaseProcess, "graph-process",
		uint64(ptr), uint64(len(frame.Pixels)),
		uint64(frame.Width), uint64(frame.Height),
		uint64(frame.Timestamp))
}

// callWithBytes copies data into guest memory, invokes a status-returning
// export, and frees the buffer.
func (g *WasmGraph) callWithBytes(ctx context.Context, phase errors.Phase, fn string, data []byte) error {
	ptr, err := g.instance.WriteBytes(ctx, data)
	if err != nil {
		return err
	}
	defer g.instance.Free(ctx, ptr)

	return g.instance.CallStatus(ctx, phase, fn, uint64(ptr), uint64(len(data)))
}

// Close tells the graph to release its resources, then tears down the
// instance and runtime. Idempotent.
func (g *WasmGraph) Close(ctx context.Context) error {
	g.closeOnce.Do(func() {
		if err := g.instance.CallStatus(ctx, errors.PhaseGraph, "graph-close"); err != nil {
			g.logger.Warn("graph-close failed", zap.Error(err))
		}
		if err := g.instance.Close(ctx); err != nil {
			g.closeErr = err
		}
		if err := g.engine.Close(ctx); err != nil && g.closeErr == nil {
			g.closeErr = err
		}
	})
	return g.closeErr
}
