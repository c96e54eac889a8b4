package solution

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/assets"
	"github.com/visionpipe/graph-runtime/errors"
	"github.com/visionpipe/graph-runtime/packet"
)

// OptionBinding maps a public option key to a graph parameter.
type OptionBinding struct {
	Param string
	Kind  packet.Kind
}

// Options is a partial set of option values keyed by public option name.
type Options map[string]any

// Results is one emission from the graph, keyed by stream name.
type Results struct {
	Streams   map[string]packet.Packet
	Timestamp int64
}

// Listener receives decoded results synchronously during Send, while the
// solution's internal lock is held. The callback must not call Initialize,
// Send, SetOptions, AttachListener, or Close on the same Solution; doing so
// deadlocks. Copy the results out and act after Send returns.
type Listener func(Results)

// Config assembles a Solution.
type Config struct {
	// Options is the schema of recognized option keys.
	Options map[string]OptionBinding

	// NewGraph builds the graph engine on first use. Called at most once.
	NewGraph func(ctx context.Context) (Graph, error)

	// Descriptor loads the compiled graph descriptor.
	Descriptor assets.Loader

	Logger *zap.Logger
}

// Solution sequences graph setup, option changes, and frame submission.
// Initialize, Send, SetOptions, AttachListener and Close are safe for
// concurrent use; calls are serialized on one mutex.
type Solution struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	graph         Graph
	graphLoaded   bool
	dirty         bool
	pending       []packet.ChangeRequest
	lastTimestamp int64
	hasTimestamp  bool
	closed        bool

	listenerMu sync.Mutex
	wants      []string
	listener   Listener
}

// New validates the config and returns an idle solution. Nothing is loaded
// until Initialize or the first Send.
func New(cfg Config) (*Solution, error) {
	if cfg.NewGraph == nil {
		return nil, errors.InvalidInput(errors.PhaseGraph, "NewGraph is required")
	}
	if cfg.Descriptor == nil {
		return nil, errors.InvalidInput(errors.PhaseGraph, "Descriptor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solution{cfg: cfg, logger: logger}, nil
}

// Initialize performs the two-phase setup: the engine binary is loaded at
// most once, and the graph descriptor at most once unless SetOptions marked
// it dirty. Pending option changes are flushed after the graph is ready.
// Safe to call repeatedly.
func (s *Solution) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Solution) initLocked(ctx context.Context) error {
	if s.closed {
		return errors.New(errors.PhaseGraph, errors.KindAborted).
			Detail("solution is closed").Build()
	}

	if s.graph == nil {
		g, err := s.cfg.NewGraph(ctx)
		if err != nil {
			return err
		}
		g.SetEmitHandler(s.dispatch)
		s.graph = g
		s.logger.Info("graph engine loaded")
	}

	if !s.graphLoaded || s.dirty {
		descriptor, err := assets.ReadAll(ctx, s.cfg.Descriptor)
		if err != nil {
			return errors.Wrap(errors.PhaseGraph, errors.KindNotFound, err, "load graph descriptor")
		}
		if err := s.graph.LoadGraph(ctx, descriptor); err != nil {
			return err
		}
		s.graphLoaded = true
		s.dirty = false
		s.logger.Info("graph descriptor loaded", zap.Int("bytes", len(descriptor)))

		s.listenerMu.Lock()
		wants := s.wants
		s.listenerMu.Unlock()
		if len(wants) > 0 {
			if err := s.graph.AttachListener(ctx, wants); err != nil {
				return err
			}
		}
	}

	if len(s.pending) > 0 {
		if err := s.graph.Configure(ctx, s.pending); err != nil {
			return err
		}
		s.logger.Debug("applied option changes", zap.Int("count", len(s.pending)))
		s.pending = nil
	}

	return nil
}

// SetOptions queues parameter changes for bound option keys and marks the
// graph for reload on the next Initialize. Unrecognized keys are dropped.
func (s *Solution) SetOptions(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.PhaseOptions, errors.KindAborted).
			Detail("solution is closed").Build()
	}

	keys := make([]string, 0, len(opts))
	for key := range opts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		binding, ok := s.cfg.Options[key]
		if !ok {
			s.logger.Debug("unknown option dropped", zap.String("key", key))
			continue
		}

		req, err := bindOption(binding, key, opts[key])
		if err != nil {
			return err
		}
		s.pending = append(s.pending, req)
		s.dirty = true
	}

	return nil
}

func bindOption(binding OptionBinding, key string, value any) (packet.ChangeRequest, error) {
	switch binding.Kind {
	case packet.KindNumber:
		n, ok := toFloat64(value)
		if !ok {
			return packet.ChangeRequest{}, errors.InvalidInput(errors.PhaseOptions,
				"option "+key+" wants a number")
		}
		return packet.Number(binding.Param, n), nil
	case packet.KindBool:
		b, ok := value.(bool)
		if !ok {
			return packet.ChangeRequest{}, errors.InvalidInput(errors.PhaseOptions,
				"option "+key+" wants a bool")
		}
		return packet.Bool(binding.Param, b), nil
	case packet.KindText:
		t, ok := value.(string)
		if !ok {
			return packet.ChangeRequest{}, errors.InvalidInput(errors.PhaseOptions,
				"option "+key+" wants a string")
		}
		return packet.Text(binding.Param, t), nil
	}
	return packet.ChangeRequest{}, errors.InvalidInput(errors.PhaseOptions,
		"option "+key+" has an unknown binding kind")
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

// Send pushes one frame through the graph, initializing lazily. Empty frames
// are skipped without touching the engine. Results reach the listener
// synchronously before Send returns; see Listener for the re-entrancy rule.
func (s *Solution) Send(ctx context.Context, frame *graphruntime.Frame) error {
	if frame.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initLocked(ctx); err != nil {
		return err
	}
	if err := frame.Validate(); err != nil {
		return errors.Wrap(errors.PhaseProcess, errors.KindInvalidInput, err, "invalid frame")
	}

	ts := frame.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMicro()
		if s.hasTimestamp && ts <= s.lastTimestamp {
			ts = s.lastTimestamp + 1
		}
	}
	if s.hasTimestamp && ts <= s.lastTimestamp {
		return errors.InvalidInput(errors.PhaseProcess, "frame timestamp must increase")
	}

	stamped := *frame
	stamped.Timestamp = ts
	if err := s.graph.Process(ctx, &stamped); err != nil {
		return err
	}

	s.lastTimestamp = ts
	s.hasTimestamp = true
	return nil
}

// AttachListener registers the streams to observe and the callback to invoke.
// If the graph is already loaded the want list is pushed immediately;
// otherwise it is attached during the next Initialize.
func (s *Solution) AttachListener(ctx context.Context, wants []string, fn Listener) error {
	if len(wants) == 0 {
		return errors.InvalidInput(errors.PhaseListen, "at least one stream name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]string, len(wants))
	copy(copied, wants)

	s.listenerMu.Lock()
	s.wants = copied
	s.listener = fn
	s.listenerMu.Unlock()

	if s.graph != nil && s.graphLoaded {
		return s.graph.AttachListener(ctx, copied)
	}
	return nil
}

// dispatch decodes an emitted result vector and zips it with the want list
// by index. Runs on the Send goroutine, inside Process.
func (s *Solution) dispatch(data []byte, timestamp int64) {
	s.listenerMu.Lock()
	wants := s.wants
	fn := s.listener
	s.listenerMu.Unlock()

	if fn == nil {
		return
	}

	packets, err := packet.DecodeVector(data)
	if err != nil {
		s.logger.Warn("dropping undecodable result vector", zap.Error(err))
		return
	}

	streams := make(map[string]packet.Packet, len(packets))
	for i, p := range packets {
		if i >= len(wants) {
			s.logger.Debug("result vector longer than want list",
				zap.Int("vector", len(packets)),
				zap.Int("wants", len(wants)))
			break
		}
		streams[wants[i]] = p
	}

	fn(Results{Streams: streams, Timestamp: timestamp})
}

// Close releases the graph engine. Idempotent; a closed solution rejects
// further calls.
func (s *Solution) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.graph != nil {
		return s.graph.Close(ctx)
	}
	return nil
}
