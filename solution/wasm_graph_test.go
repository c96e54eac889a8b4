package solution

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/assets"
	rterrors "github.com/visionpipe/graph-runtime/errors"
	"github.com/visionpipe/graph-runtime/packet"
)

// graphModule assembles a minimal engine binary implementing the graph ABI:
// a one-page memory, a constant-offset malloc, and the five graph exports.
// graph-process runs processBody; the other status functions return 0.
//
//	(module
//	  (import "env" "graph-emit" (func (param i32 i32 i64)))
//	  (memory (export "memory") 1)
//	  (func (export "malloc") (param i32) (result i32) i32.const 1024)
//	  (func (export "free") (param i32))
//	  (func (export "graph-load") (param i32 i32) (result i32) i32.const 0)
//	  ...)
func graphModule(processBody []byte) []byte {
	sec := func(id byte, payload []byte) []byte {
		return append([]byte{id, byte(len(payload))}, payload...)
	}
	name := func(s string) []byte {
		return append([]byte{byte(len(s))}, s...)
	}
	body := func(content []byte) []byte {
		return append([]byte{byte(len(content))}, content...)
	}

	types := []byte{6,
		0x60, 0x03, 0x7f, 0x7f, 0x7e, 0x00, // t0: (i32,i32,i64) -> ()     emit
		0x60, 0x01, 0x7f, 0x01, 0x7f, // t1: (i32) -> i32            malloc
		0x60, 0x01, 0x7f, 0x00, // t2: (i32) -> ()             free
		0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // t3: (i32,i32) -> i32        load/configure/attach
		0x60, 0x05, 0x7f, 0x7f, 0x7f, 0x7f, 0x7e, 0x01, 0x7f, // t4: process
		0x60, 0x00, 0x01, 0x7f, // t5: () -> i32               close
	}

	imports := []byte{1}
	imports = append(imports, name("env")...)
	imports = append(imports, name(EmitName)...)
	imports = append(imports, 0x00, 0x00) // func, type t0

	funcs := []byte{7, 1, 2, 3, 3, 3, 4, 5}

	memory := []byte{1, 0x00, 0x01} // min 1 page

	exports := []byte{8}
	addExport := func(n string, kind, idx byte) {
		exports = append(exports, name(n)...)
		exports = append(exports, kind, idx)
	}
	addExport("memory", 0x02, 0)
	addExport("malloc", 0x00, 1) // imported emit is func index 0
	addExport("free", 0x00, 2)
	addExport("graph-load", 0x00, 3)
	addExport("graph-configure", 0x00, 4)
	addExport("graph-attach", 0x00, 5)
	addExport("graph-process", 0x00, 6)
	addExport("graph-close", 0x00, 7)

	returnZero := []byte{0x00, 0x41, 0x00, 0x0b}
	code := []byte{7}
	code = append(code, body([]byte{0x00, 0x41, 0x80, 0x08, 0x0b})...) // malloc: i32.const 1024
	code = append(code, body([]byte{0x00, 0x0b})...)                   // free: nop
	code = append(code, body(returnZero)...)                           // graph-load
	code = append(code, body(returnZero)...)                           // graph-configure
	code = append(code, body(returnZero)...)                           // graph-attach
	code = append(code, body(processBody)...)                          // graph-process
	code = append(code, body(returnZero)...)                           // graph-close

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, sec(0x01, types)...)
	mod = append(mod, sec(0x02, imports)...)
	mod = append(mod, sec(0x03, funcs)...)
	mod = append(mod, sec(0x05, memory)...)
	mod = append(mod, sec(0x07, exports)...)
	mod = append(mod, sec(0x0a, code)...)
	return mod
}

// emitProcessBody forwards the submitted buffer and timestamp to graph-emit,
// then returns status 0: local.get ptr, local.get len, local.get ts, call 0.
var emitProcessBody = []byte{0x00, 0x20, 0x00, 0x20, 0x01, 0x20, 0x04, 0x10, 0x00, 0x41, 0x00, 0x0b}

// failProcessBody returns status 3 without emitting.
var failProcessBody = []byte{0x00, 0x41, 0x03, 0x0b}

func newTestWasmGraph(t *testing.T, processBody []byte) *WasmGraph {
	t.Helper()
	ctx := context.Background()

	g, err := NewWasmGraph(ctx, graphModule(processBody), nil)
	if err != nil {
		t.Fatalf("create graph: %v", err)
	}
	t.Cleanup(func() { _ = g.Close(ctx) })
	return g
}

func TestWasmGraph_EmitDeliversBuffer(t *testing.T) {
	g := newTestWasmGraph(t, emitProcessBody)
	ctx := context.Background()

	if err := g.LoadGraph(ctx, []byte("descriptor")); err != nil {
		t.Fatalf("load graph: %v", err)
	}
	if err := g.Configure(ctx, []packet.ChangeRequest{packet.Number("pose_threshold", 0.5)}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := g.AttachListener(ctx, []string{"pose_landmarks"}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	var gotData []byte
	var gotTS int64
	g.SetEmitHandler(func(data []byte, timestamp int64) {
		gotData = data
		gotTS = timestamp
	})

	frame := &graphruntime.Frame{
		Pixels:    []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Width:     2,
		Height:    2,
		Timestamp: 77,
	}
	if err := g.Process(ctx, frame); err != nil {
		t.Fatalf("process: %v", err)
	}

	if !bytes.Equal(gotData, frame.Pixels) {
		t.Errorf("emitted %v, want the submitted buffer %v", gotData, frame.Pixels)
	}
	if gotTS != 77 {
		t.Errorf("emitted timestamp = %d, want 77", gotTS)
	}
}

func TestWasmGraph_StatusSurfacesAsCallFailed(t *testing.T) {
	g := newTestWasmGraph(t, failProcessBody)
	ctx := context.Background()

	err := g.Process(ctx, &graphruntime.Frame{
		Pixels: make([]byte, 16),
		Width:  2,
		Height: 2,
	})
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseProcess, Kind: rterrors.KindCallFailed}) {
		t.Fatalf("expected process/call_failed error, got %v", err)
	}
}

func TestWasmGraph_EmptyDescriptor(t *testing.T) {
	g := newTestWasmGraph(t, emitProcessBody)

	err := g.LoadGraph(context.Background(), nil)
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseGraph, Kind: rterrors.KindInvalidInput}) {
		t.Errorf("expected graph/invalid_input error, got %v", err)
	}
}

func TestWasmGraph_Close(t *testing.T) {
	ctx := context.Background()
	g, err := NewWasmGraph(ctx, graphModule(emitProcessBody), nil)
	if err != nil {
		t.Fatalf("create graph: %v", err)
	}

	if err := g.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := g.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

// TestSolution_OverWasmGraph runs the full path: Send writes the frame into
// guest memory, graph-process echoes it through graph-emit, and the listener
// receives the decoded vector. The frame pixels are a valid encoded vector of
// exactly width*height*4 bytes so the echo decodes.
func TestSolution_OverWasmGraph(t *testing.T) {
	ctx := context.Background()

	payload := []byte{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6}
	pixels, err := packet.EncodeVector([]packet.Packet{{Tag: packet.TagRaw, Raw: payload}})
	if err != nil {
		t.Fatalf("encode vector: %v", err)
	}
	if len(pixels) != 2*2*graphruntime.BytesPerPixel {
		t.Fatalf("fixture vector is %d bytes, want 16", len(pixels))
	}

	descriptor, err := assets.NewFromBytes([]byte("descriptor"))
	if err != nil {
		t.Fatalf("descriptor loader: %v", err)
	}

	sol, err := New(Config{
		NewGraph: func(ctx context.Context) (Graph, error) {
			return NewWasmGraph(ctx, graphModule(emitProcessBody), nil)
		},
		Descriptor: descriptor,
	})
	if err != nil {
		t.Fatalf("new solution: %v", err)
	}
	defer sol.Close(ctx)

	var got Results
	if err := sol.AttachListener(ctx, []string{"echo"}, func(r Results) { got = r }); err != nil {
		t.Fatalf("attach: %v", err)
	}

	frame := &graphruntime.Frame{Pixels: pixels, Width: 2, Height: 2, Timestamp: 33}
	if err := sol.Send(ctx, frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	pkt, ok := got.Streams["echo"]
	if !ok {
		t.Fatalf("streams = %+v, want echo", got.Streams)
	}
	if pkt.Tag != packet.TagRaw || !bytes.Equal(pkt.Raw, payload) {
		t.Errorf("echo packet = %+v", pkt)
	}
	if got.Timestamp != 33 {
		t.Errorf("timestamp = %d, want 33", got.Timestamp)
	}
}
