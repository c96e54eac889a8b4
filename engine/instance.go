package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	graphruntime "github.com/visionpipe/graph-runtime"
	rterrors "github.com/visionpipe/graph-runtime/errors"
)

// Allocator export names probed in order. Emscripten emits malloc/free;
// older toolchains prefix with an underscore.
var (
	allocNames = []string{"malloc", "_malloc"}
	freeNames  = []string{"free", "_free"}
)

// Instance is a running WASM instance.
// It is NOT safe for concurrent use from multiple goroutines.
// Each goroutine should have its own Instance, or access must be synchronized.
type Instance struct {
	module    *Module
	instance  api.Module
	memory    *Memory
	allocFn   api.Function
	freeFn    api.Function
	funcCache map[string]api.Function
}

func newInstance(m *Module, mod api.Module) *Instance {
	inst := &Instance{
		module:    m,
		instance:  mod,
		funcCache: make(map[string]api.Function),
	}

	if mem := mod.Memory(); mem != nil {
		inst.memory = &Memory{mem: mem}
	}

	for _, name := range allocNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			inst.allocFn = fn
			break
		}
	}
	for _, name := range freeNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			inst.freeFn = fn
			break
		}
	}

	return inst
}

// Memory returns the instance's linear memory, or nil if the module exports none.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *Instance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

func (i *Instance) exportedFunction(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	fn := i.instance.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// HasExport reports whether the instance exports a function with this name.
func (i *Instance) HasExport(name string) bool {
	return i.exportedFunction(name) != nil
}

// Call invokes an exported function with raw stack values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.exportedFunction(name)
	if fn == nil {
		return nil, rterrors.NotFound(rterrors.PhaseProcess, "function", name)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, rterrors.Wrap(rterrors.PhaseProcess, rterrors.KindCallFailed, err, "call "+name)
	}
	return results, nil
}

// CallStatus invokes an exported function whose single i32 result is an engine
// status code. Nonzero statuses become structured errors.
func (i *Instance) CallStatus(ctx context.Context, phase rterrors.Phase, name string, args ...uint64) error {
	fn := i.exportedFunction(name)
	if fn == nil {
		return rterrors.NotFound(phase, "function", name)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		return rterrors.Wrap(phase, rterrors.KindCallFailed, err, "call "+name)
	}
	if len(results) > 0 {
		if status := int32(results[0]); status != 0 {
			return rterrors.CallFailed(phase, name, status)
		}
	}
	return nil
}

// Alloc reserves size bytes in guest memory via the module's exported allocator.
func (i *Instance) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if i.allocFn == nil {
		return 0, rterrors.NotFound(rterrors.PhaseLoad, "export", "malloc")
	}

	results, err := i.allocFn.Call(ctx, uint64(size))
	if err != nil || len(results) == 0 || uint32(results[0]) == 0 {
		return 0, rterrors.AllocationFailed(rterrors.PhaseProcess, size, err)
	}
	return uint32(results[0]), nil
}

// Free releases guest memory previously returned by Alloc. Best effort.
func (i *Instance) Free(ctx context.Context, ptr uint32) {
	if i.freeFn == nil || ptr == 0 {
		return
	}
	if _, err := i.freeFn.Call(ctx, uint64(ptr)); err != nil {
		Logger().Warn("free failed in guest",
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// WriteBytes allocates guest memory and copies data into it. The caller owns
// the returned pointer and must Free it after the call that consumes it.
func (i *Instance) WriteBytes(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if i.memory == nil {
		return 0, rterrors.NotInitialized(rterrors.PhaseProcess, "guest memory")
	}

	ptr, err := i.Alloc(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := i.memory.Write(ptr, data); err != nil {
		i.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadBytes copies length bytes out of guest memory.
func (i *Instance) ReadBytes(ptr, length uint32) ([]byte, error) {
	if i.memory == nil {
		return nil, rterrors.NotInitialized(rterrors.PhaseProcess, "guest memory")
	}
	data, err := i.memory.Read(ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (i *Instance) Close(ctx context.Context) error {
	var firstErr error
	if i.instance != nil {
		if err := i.instance.Close(ctx); err != nil {
			firstErr = err
		}
		i.instance = nil
	}
	// Clear references to help GC
	i.funcCache = nil
	i.memory = nil
	i.allocFn = nil
	i.freeFn = nil
	return firstErr
}

// Compile-time check that Memory implements graphruntime.Memory and MemorySizer
var _ graphruntime.Memory = (*Memory)(nil)
var _ graphruntime.MemorySizer = (*Memory)(nil)
