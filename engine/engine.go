package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

// Engine owns a wazero runtime and the host functions registered on it.
// Engine and Module are safe for concurrent use; Instance is not.
type Engine struct {
	runtime   wazero.Runtime
	hostDefs  map[string][]hostFunc
	hostsDone bool
	hostsMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type hostFunc struct {
	name string
	fn   any
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// New creates a new wazero-backed engine.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a new engine with custom configuration.
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Engine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		hostDefs: make(map[string][]hostFunc),
	}, nil
}

// RegisterFunc registers fn as a host function under namespace/name.
// Must be called BEFORE the first Instantiate; host modules are frozen once
// any instance exists. fn follows wazero's host function conventions, e.g.
// func(ctx context.Context, mod api.Module, streamsIdx, dataPtr, dataLen uint32).
func (e *Engine) RegisterFunc(namespace, name string, fn any) error {
	if namespace == "" || name == "" {
		return rterrors.InvalidInput(rterrors.PhaseLoad, "host function namespace and name must be non-empty")
	}

	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	if e.hostsDone {
		return rterrors.Unsupported(rterrors.PhaseLoad,
			"host functions cannot be registered after instantiation")
	}
	e.hostDefs[namespace] = append(e.hostDefs[namespace], hostFunc{name: name, fn: fn})
	return nil
}

// instantiateHosts builds one wazero host module per registered namespace.
// Idempotent; later registrations are rejected by RegisterFunc.
func (e *Engine) instantiateHosts(ctx context.Context) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	if e.hostsDone {
		return nil
	}

	for ns, fns := range e.hostDefs {
		builder := e.runtime.NewHostModuleBuilder(ns)
		for _, hf := range fns {
			builder = builder.NewFunctionBuilder().WithFunc(hf.fn).Export(hf.name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return rterrors.Load("instantiate host module "+ns, err)
		}
	}

	e.hostsDone = true
	return nil
}

// Load compiles a core WebAssembly module. The binary is the opaque graph
// engine; its exports are validated lazily against an ABI table on Instantiate.
func (e *Engine) Load(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, rterrors.Load("compile module", err)
	}

	return &Module{
		engine:   e,
		compiled: compiled,
	}, nil
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.closeErr = e.runtime.Close(ctx)
	})
	return e.closeErr
}
