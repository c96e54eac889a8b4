package solution

import (
	"context"
	stderrors "errors"
	"testing"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/assets"
	rterrors "github.com/visionpipe/graph-runtime/errors"
	"github.com/visionpipe/graph-runtime/packet"
)

type fakeGraph struct {
	loads      [][]byte
	configures [][]packet.ChangeRequest
	attaches   [][]string
	frames     []graphruntime.Frame
	closed     int

	emit func(data []byte, timestamp int64)

	// emitOnProcess, when set, is delivered to the emit handler during
	// every Process call, with the frame timestamp.
	emitOnProcess []byte

	failProcess error
}

func (f *fakeGraph) LoadGraph(_ context.Context, descriptor []byte) error {
	f.loads = append(f.loads, descriptor)
	return nil
}

func (f *fakeGraph) Configure(_ context.Context, requests []packet.ChangeRequest) error {
	f.configures = append(f.configures, requests)
	return nil
}

func (f *fakeGraph) AttachListener(_ context.Context, wants []string) error {
	f.attaches = append(f.attaches, wants)
	return nil
}

func (f *fakeGraph) Process(_ context.Context, frame *graphruntime.Frame) error {
	if f.failProcess != nil {
		return f.failProcess
	}
	f.frames = append(f.frames, *frame)
	if f.emitOnProcess != nil && f.emit != nil {
		f.emit(f.emitOnProcess, frame.Timestamp)
	}
	return nil
}

func (f *fakeGraph) SetEmitHandler(fn func(data []byte, timestamp int64)) {
	f.emit = fn
}

func (f *fakeGraph) Close(_ context.Context) error {
	f.closed++
	return nil
}

func testDescriptor(t *testing.T) assets.Loader {
	t.Helper()
	loader, err := assets.NewFromBytes([]byte("descriptor"))
	if err != nil {
		t.Fatalf("descriptor loader: %v", err)
	}
	return loader
}

func newTestSolution(t *testing.T) (*Solution, *fakeGraph, *int) {
	t.Helper()

	fake := &fakeGraph{}
	factoryCalls := 0
	sol, err := New(Config{
		Options: map[string]OptionBinding{
			"poseThreshold":   {Param: "pose_threshold", Kind: packet.KindNumber},
			"smoothLandmarks": {Param: "smooth_landmarks", Kind: packet.KindBool},
		},
		NewGraph: func(ctx context.Context) (Graph, error) {
			factoryCalls++
			return fake, nil
		},
		Descriptor: testDescriptor(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sol, fake, &factoryCalls
}

func rgbaFrame(ts int64) *graphruntime.Frame {
	return &graphruntime.Frame{
		Pixels:    make([]byte, 2*2*graphruntime.BytesPerPixel),
		Width:     2,
		Height:    2,
		Timestamp: ts,
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	sol, fake, factoryCalls := newTestSolution(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := sol.Initialize(ctx); err != nil {
			t.Fatalf("initialize %d: %v", i, err)
		}
	}

	if *factoryCalls != 1 {
		t.Errorf("engine built %d times, want 1", *factoryCalls)
	}
	if len(fake.loads) != 1 {
		t.Errorf("graph loaded %d times, want 1", len(fake.loads))
	}
}

func TestSetOptions_QueuesAndClears(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := sol.SetOptions(Options{"poseThreshold": 0.75}); err != nil {
		t.Fatalf("set options: %v", err)
	}
	if err := sol.Initialize(ctx); err != nil {
		t.Fatalf("reinitialize: %v", err)
	}

	// Dirty options force exactly one graph reload.
	if len(fake.loads) != 2 {
		t.Errorf("graph loaded %d times, want 2", len(fake.loads))
	}
	if len(fake.configures) != 1 {
		t.Fatalf("configure called %d times, want 1", len(fake.configures))
	}
	reqs := fake.configures[0]
	if len(reqs) != 1 {
		t.Fatalf("got %d change requests, want 1", len(reqs))
	}
	if reqs[0].Param != "pose_threshold" || reqs[0].Number != 0.75 {
		t.Errorf("request = %+v", reqs[0])
	}

	// Queue cleared: a third initialize neither reloads nor reconfigures.
	if err := sol.Initialize(ctx); err != nil {
		t.Fatalf("third initialize: %v", err)
	}
	if len(fake.loads) != 2 || len(fake.configures) != 1 {
		t.Errorf("after third init: %d loads, %d configures", len(fake.loads), len(fake.configures))
	}
}

func TestSetOptions_UnknownKeyDropped(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	if err := sol.SetOptions(Options{"selfieMode": true}); err != nil {
		t.Fatalf("set options: %v", err)
	}
	if err := sol.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(fake.configures) != 0 {
		t.Errorf("unknown key reached the graph: %+v", fake.configures)
	}
}

func TestSetOptions_TypeMismatch(t *testing.T) {
	sol, _, _ := newTestSolution(t)

	err := sol.SetOptions(Options{"poseThreshold": "high"})
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseOptions, Kind: rterrors.KindInvalidInput}) {
		t.Errorf("expected invalid_input error, got %v", err)
	}
}

func TestSend_EmptyFrameIsNoOp(t *testing.T) {
	sol, _, factoryCalls := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Send(ctx, nil); err != nil {
		t.Fatalf("send nil: %v", err)
	}
	if err := sol.Send(ctx, &graphruntime.Frame{Width: 2, Height: 2}); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	if *factoryCalls != 0 {
		t.Errorf("empty sends touched the engine")
	}
}

func TestSend_LazyInitialize(t *testing.T) {
	sol, fake, factoryCalls := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Send(ctx, rgbaFrame(100)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if *factoryCalls != 1 || len(fake.loads) != 1 {
		t.Errorf("lazy init: %d factory calls, %d loads", *factoryCalls, len(fake.loads))
	}
	if len(fake.frames) != 1 || fake.frames[0].Timestamp != 100 {
		t.Errorf("frames = %+v", fake.frames)
	}
}

func TestSend_TimestampMustIncrease(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Send(ctx, rgbaFrame(200)); err != nil {
		t.Fatalf("send: %v", err)
	}
	err := sol.Send(ctx, rgbaFrame(100))
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseProcess, Kind: rterrors.KindInvalidInput}) {
		t.Fatalf("expected invalid_input error, got %v", err)
	}
	if len(fake.frames) != 1 {
		t.Errorf("stale frame reached the graph")
	}
}

func TestSend_AssignsTimestamps(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Send(ctx, rgbaFrame(0)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sol.Send(ctx, rgbaFrame(0)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(fake.frames) != 2 {
		t.Fatalf("got %d frames", len(fake.frames))
	}
	if fake.frames[0].Timestamp <= 0 || fake.frames[1].Timestamp <= fake.frames[0].Timestamp {
		t.Errorf("timestamps not increasing: %d, %d",
			fake.frames[0].Timestamp, fake.frames[1].Timestamp)
	}
}

func encodeTestVector(t *testing.T, packets []packet.Packet) []byte {
	t.Helper()
	data, err := packet.EncodeVector(packets)
	if err != nil {
		t.Fatalf("encode vector: %v", err)
	}
	return data
}

func TestAttachListener_ZipsWants(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	fake.emitOnProcess = encodeTestVector(t, []packet.Packet{
		{Tag: packet.TagLandmarkList, Landmarks: []packet.Landmark{{X: 0.5, Visibility: 0.9}}},
		{Tag: packet.TagRect, Rect: &packet.Rect{Width: 0.8}},
	})

	var got Results
	err := sol.AttachListener(ctx, []string{"pose_landmarks", "pose_rect"}, func(r Results) {
		got = r
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := sol.Send(ctx, rgbaFrame(50)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(got.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(got.Streams))
	}
	lm := got.Streams["pose_landmarks"]
	if lm.Tag != packet.TagLandmarkList || len(lm.Landmarks) != 1 || lm.Landmarks[0].X != 0.5 {
		t.Errorf("pose_landmarks = %+v", lm)
	}
	rect := got.Streams["pose_rect"]
	if rect.Tag != packet.TagRect || rect.Rect == nil || rect.Rect.Width != 0.8 {
		t.Errorf("pose_rect = %+v", rect)
	}
	if got.Timestamp != 50 {
		t.Errorf("timestamp = %d, want 50", got.Timestamp)
	}

	// The want list was pushed to the graph during initialize.
	if len(fake.attaches) != 1 || len(fake.attaches[0]) != 2 {
		t.Errorf("attaches = %+v", fake.attaches)
	}
}

func TestAttachListener_ShortVector(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	fake.emitOnProcess = encodeTestVector(t, []packet.Packet{
		{Tag: packet.TagRaw, Raw: []byte{1}},
	})

	var got Results
	if err := sol.AttachListener(ctx, []string{"a", "b"}, func(r Results) { got = r }); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := sol.Send(ctx, rgbaFrame(10)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(got.Streams))
	}
	if _, ok := got.Streams["a"]; !ok {
		t.Errorf("streams = %+v", got.Streams)
	}
}

func TestAttachListener_NoWants(t *testing.T) {
	sol, _, _ := newTestSolution(t)

	err := sol.AttachListener(context.Background(), nil, func(Results) {})
	if err == nil {
		t.Error("expected error for empty want list")
	}
}

func TestClose(t *testing.T) {
	sol, fake, _ := newTestSolution(t)
	ctx := context.Background()

	if err := sol.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := sol.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sol.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if fake.closed != 1 {
		t.Errorf("graph closed %d times, want 1", fake.closed)
	}

	if err := sol.Send(ctx, rgbaFrame(1)); err == nil {
		t.Error("send after close succeeded")
	}
}

func TestClose_BeforeInitialize(t *testing.T) {
	sol, fake, factoryCalls := newTestSolution(t)

	if err := sol.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if *factoryCalls != 0 || fake.closed != 0 {
		t.Errorf("close of idle solution touched the engine")
	}
}
