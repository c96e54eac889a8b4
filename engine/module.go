package engine

import (
	"context"

	"github.com/tetratelabs/wazero"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

// Module is a compiled WASM module
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Name string

	// StartFunctions overrides the functions invoked at instantiation.
	// Emscripten-built graph binaries export _initialize instead of _start.
	StartFunctions []string

	// ABI, when non-empty, is a WIT-style signature table the instantiated
	// module's exports are validated against. See ParseABI.
	ABI *ABI
}

// Exports returns the names of the module's exported functions.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.InstantiateWithConfig(ctx, nil)
}

// InstantiateWithConfig creates a running instance. Host modules registered on
// the engine are instantiated first so guest imports resolve.
func (m *Module) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*Instance, error) {
	if err := m.engine.instantiateHosts(ctx); err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig()
	if cfg != nil && cfg.Name != "" {
		modConfig = modConfig.WithName(cfg.Name)
	} else {
		modConfig = modConfig.WithName("") // anonymous for parallel instantiation
	}
	if cfg != nil && len(cfg.StartFunctions) > 0 {
		modConfig = modConfig.WithStartFunctions(cfg.StartFunctions...)
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, rterrors.Wrap(rterrors.PhaseLoad, rterrors.KindInvalidData, err, "instantiate module")
	}

	inst := newInstance(m, mod)

	if cfg != nil && cfg.ABI != nil {
		if err := cfg.ABI.Validate(inst); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
	}

	return inst, nil
}
