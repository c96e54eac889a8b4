package engine

import (
	"context"
	stderrors "errors"
	"testing"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

const addABI = `
add: func(a: u32, b: u32) -> u32;
`

func TestParseABI(t *testing.T) {
	abi, err := ParseABI(`
		graph-load: func(ptr: u32, len: u32) -> s32;
		graph-process: func(ptr: u32, len: u32, width: u32, height: u32, ts: u64) -> s32;
		graph-close: func();
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	params, results, err := abi.Signature("graph-process")
	if err != nil {
		t.Fatalf("signature: %v", err)
	}
	if len(params) != 5 {
		t.Errorf("got %d params, want 5", len(params))
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}

	_, _, err = abi.Signature("nope")
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseParse, Kind: rterrors.KindNotFound}) {
		t.Errorf("expected not_found, got %v", err)
	}

	if got := len(abi.Names()); got != 3 {
		t.Errorf("Names() has %d entries, want 3", got)
	}
}

func TestParseABI_Empty(t *testing.T) {
	if _, err := ParseABI("no functions here"); err == nil {
		t.Error("expected error for text without functions")
	}
}

func TestABI_Validate(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	defer e.Close(ctx)

	mod, err := e.Load(ctx, addModule)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	tests := []struct {
		name    string
		abi     string
		wantErr bool
	}{
		{"matching signature", addABI, false},
		{"missing export", "sub: func(a: u32, b: u32) -> u32;", true},
		{"wrong param count", "add: func(a: u32) -> u32;", true},
		{"wrong param width", "add: func(a: u64, b: u32) -> u32;", true},
		{"wrong result", "add: func(a: u32, b: u32) -> u64;", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abi := MustParseABI(tt.abi)
			err := abi.Validate(inst)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModule_InstantiateWithABI(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	defer e.Close(ctx)

	mod, err := e.Load(ctx, addModule)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Mismatched ABI fails instantiation up front.
	_, err = mod.InstantiateWithConfig(ctx, &InstanceConfig{
		ABI: MustParseABI("add: func(a: u64) -> u32;"),
	})
	if err == nil {
		t.Fatal("expected ABI validation failure")
	}

	inst, err := mod.InstantiateWithConfig(ctx, &InstanceConfig{
		ABI: MustParseABI(addABI),
	})
	if err != nil {
		t.Fatalf("instantiate with matching ABI: %v", err)
	}
	defer inst.Close(ctx)
}
