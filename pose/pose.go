package pose

import (
	"context"

	"go.uber.org/zap"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/assets"
	"github.com/visionpipe/graph-runtime/errors"
	"github.com/visionpipe/graph-runtime/packet"
	"github.com/visionpipe/graph-runtime/solution"
)

// Output stream names of the pose graph.
const (
	StreamLandmarks = "pose_landmarks"
	StreamRect      = "pose_rect"
)

// Asset file names of the pose solution bundle.
const (
	EngineWASMFile = "pose_engine.wasm"
	DataPackFile   = "pose_assets.pack"
	DescriptorFile = "pose_graph.binarypb"
)

// DefaultBaseURL is where the pose asset bundle is published.
const DefaultBaseURL = "https://storage.visionpipe.dev/pose/latest"

// DefaultManifest lists the bundle's files. Digests are not pinned here;
// callers that need verification supply their own manifest.
func DefaultManifest() assets.Manifest {
	return assets.Manifest{Files: []assets.File{
		{Name: EngineWASMFile},
		{Name: DataPackFile},
		{Name: DescriptorFile},
	}}
}

// NormalizedLandmark is one body keypoint in normalized image coordinates.
// Z uses the hip midpoint as origin, scaled roughly like X.
type NormalizedLandmark struct {
	X, Y, Z    float32
	Visibility float32
}

// NormalizedRect is the region of interest tracking the detected body.
type NormalizedRect struct {
	XCenter, YCenter float32
	Width, Height    float32
	Rotation         float32
}

// Result is one frame's pose output.
type Result struct {
	Landmarks []NormalizedLandmark
	Rect      *NormalizedRect
	Timestamp int64
}

// Config assembles a pose solution.
type Config struct {
	// EngineWASM supplies the engine binary.
	EngineWASM assets.Loader

	// Descriptor supplies the compiled pose graph.
	Descriptor assets.Loader

	// MemoryLimitPages caps guest memory. 0 uses the engine default.
	MemoryLimitPages uint32

	// StartFunctions overrides instantiation start functions for the
	// engine binary.
	StartFunctions []string

	Logger *zap.Logger

	// NewGraph overrides engine construction, for tests.
	NewGraph func(ctx context.Context) (solution.Graph, error)
}

// Pose drives the pose estimation graph. Safe for concurrent use; the
// underlying solution serializes calls.
type Pose struct {
	sol    *solution.Solution
	logger *zap.Logger
}

// New builds an idle pose solution. Assets load lazily on the first Send.
func New(cfg Config) (*Pose, error) {
	if cfg.Descriptor == nil {
		return nil, errors.InvalidInput(errors.PhaseGraph, "Descriptor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	newGraph := cfg.NewGraph
	if newGraph == nil {
		if cfg.EngineWASM == nil {
			return nil, errors.InvalidInput(errors.PhaseGraph, "EngineWASM is required")
		}
		newGraph = func(ctx context.Context) (solution.Graph, error) {
			wasm, err := assets.ReadAll(ctx, cfg.EngineWASM)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "load engine binary")
			}
			return solution.NewWasmGraph(ctx, wasm, &solution.WasmGraphConfig{
				MemoryLimitPages: cfg.MemoryLimitPages,
				StartFunctions:   cfg.StartFunctions,
				Logger:           logger,
			})
		}
	}

	sol, err := solution.New(solution.Config{
		Options:    optionSchema(),
		NewGraph:   newGraph,
		Descriptor: cfg.Descriptor,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Pose{sol: sol, logger: logger}, nil
}

// OnResults registers the callback invoked with each frame's pose output.
// The callback runs synchronously during Send and must not call back into
// this Pose; see solution.Listener.
func (p *Pose) OnResults(ctx context.Context, fn func(Result)) error {
	return p.sol.AttachListener(ctx, []string{StreamLandmarks, StreamRect},
		func(r solution.Results) {
			fn(translate(r))
		})
}

func translate(r solution.Results) Result {
	out := Result{Timestamp: r.Timestamp}

	if pkt, ok := r.Streams[StreamLandmarks]; ok && pkt.Tag == packet.TagLandmarkList {
		out.Landmarks = make([]NormalizedLandmark, len(pkt.Landmarks))
		for i, lm := range pkt.Landmarks {
			out.Landmarks[i] = NormalizedLandmark{
				X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: lm.Visibility,
			}
		}
	}

	if pkt, ok := r.Streams[StreamRect]; ok && pkt.Tag == packet.TagRect && pkt.Rect != nil {
		out.Rect = &NormalizedRect{
			XCenter:  pkt.Rect.XCenter,
			YCenter:  pkt.Rect.YCenter,
			Width:    pkt.Rect.Width,
			Height:   pkt.Rect.Height,
			Rotation: pkt.Rect.Rotation,
		}
	}

	return out
}

// Initialize loads the engine and graph eagerly. Optional; Send initializes
// lazily.
func (p *Pose) Initialize(ctx context.Context) error {
	return p.sol.Initialize(ctx)
}

// SetOptions queues option changes, applied on the next Initialize or Send.
func (p *Pose) SetOptions(opts Options) error {
	return p.sol.SetOptions(opts.toSolution())
}

// Send pushes one RGBA frame through the graph.
func (p *Pose) Send(ctx context.Context, frame *graphruntime.Frame) error {
	return p.sol.Send(ctx, frame)
}

// Close releases the engine. Idempotent.
func (p *Pose) Close(ctx context.Context) error {
	return p.sol.Close(ctx)
}
