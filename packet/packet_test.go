package packet

import (
	"encoding/binary"
	stderrors "errors"
	"math"
	"testing"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

func TestVector_Roundtrip(t *testing.T) {
	in := []Packet{
		{
			Tag: TagLandmarkList,
			Landmarks: []Landmark{
				{X: 0.5, Y: 0.25, Z: -0.1, Visibility: 0.99},
				{X: 0.75, Y: 0.5, Z: 0, Visibility: 0.42},
			},
		},
		{
			Tag:  TagRect,
			Rect: &Rect{XCenter: 0.5, YCenter: 0.5, Width: 0.8, Height: 0.9, Rotation: 0.1},
		},
		{Tag: TagRaw, Raw: []byte{0xde, 0xad}},
	}

	data, err := EncodeVector(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeVector(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d packets, want 3", len(out))
	}
	if len(out[0].Landmarks) != 2 {
		t.Fatalf("got %d landmarks, want 2", len(out[0].Landmarks))
	}
	if lm := out[0].Landmarks[0]; lm.X != 0.5 || lm.Visibility != 0.99 {
		t.Errorf("landmark 0 = %+v", lm)
	}
	if out[1].Rect == nil || out[1].Rect.Rotation != 0.1 {
		t.Errorf("rect = %+v", out[1].Rect)
	}
	if string(out[2].Raw) != "\xde\xad" {
		t.Errorf("raw = %x", out[2].Raw)
	}
}

func TestDecodeVector_Errors(t *testing.T) {
	rectPacket := func() []byte {
		data, err := EncodeVector([]Packet{{Tag: TagRect, Rect: &Rect{Width: 1}}})
		if err != nil {
			t.Fatalf("encode fixture: %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"truncated count", []byte{1, 0}},
		{"count without packets", []byte{1, 0, 0, 0}},
		{"unknown tag", []byte{1, 0, 0, 0, 99, 0, 0, 0, 0}},
		{"truncated payload", rectPacket()[:9]},
		{"trailing bytes", append(rectPacket(), 0xff)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeVector(tt.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestDecodeVector_CountLimit(t *testing.T) {
	data := binary.LittleEndian.AppendUint32(nil, maxVectorEntries+1)
	_, err := DecodeVector(data)
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseDecode, Kind: rterrors.KindInvalidData}) {
		t.Errorf("expected invalid_data error, got %v", err)
	}
}

func TestDecodeVector_BadRectSize(t *testing.T) {
	// Rect tag with a 4-byte payload.
	data := binary.LittleEndian.AppendUint32(nil, 1)
	data = append(data, byte(TagRect))
	data = binary.LittleEndian.AppendUint32(data, 4)
	data = append(data, 0, 0, 0, 0)

	if _, err := DecodeVector(data); err == nil {
		t.Error("expected error for undersized rect payload")
	}
}

func TestDecodeLandmarks_SizeMismatch(t *testing.T) {
	// Landmark list claiming 2 entries but carrying bytes for 1.
	payload := binary.LittleEndian.AppendUint32(nil, 2)
	payload = append(payload, make([]byte, landmarkSize)...)

	data := binary.LittleEndian.AppendUint32(nil, 1)
	data = append(data, byte(TagLandmarkList))
	data = binary.LittleEndian.AppendUint32(data, uint32(len(payload)))
	data = append(data, payload...)

	if _, err := DecodeVector(data); err == nil {
		t.Error("expected error for landmark size mismatch")
	}
}

func TestChangeRequests_Roundtrip(t *testing.T) {
	in := []ChangeRequest{
		Number("pose_threshold", 0.75),
		Bool("smooth_landmarks", true),
		Text("model_variant", "heavy"),
	}

	data, err := EncodeChangeRequests(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeChangeRequests(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d requests, want 3", len(out))
	}
	if out[0].Param != "pose_threshold" || out[0].Number != 0.75 {
		t.Errorf("request 0 = %+v", out[0])
	}
	if !out[1].Boolean {
		t.Errorf("request 1 = %+v", out[1])
	}
	if out[2].Text != "heavy" {
		t.Errorf("request 2 = %+v", out[2])
	}
}

func TestEncodeChangeRequests_EmptyParam(t *testing.T) {
	_, err := EncodeChangeRequests([]ChangeRequest{{Kind: KindNumber}})
	if !stderrors.Is(err, &rterrors.Error{Phase: rterrors.PhaseEncode, Kind: rterrors.KindInvalidInput}) {
		t.Errorf("expected invalid_input error, got %v", err)
	}
}

func TestWants_Roundtrip(t *testing.T) {
	in := []string{"pose_landmarks", "pose_rect"}

	out, err := DecodeWants(EncodeWants(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0] != "pose_landmarks" || out[1] != "pose_rect" {
		t.Errorf("wants = %v", out)
	}

	empty, err := DecodeWants(EncodeWants(nil))
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty wants = %v", empty)
	}
}

func TestNumberPrecision(t *testing.T) {
	v := math.Nextafter(0.1, 1)
	data, err := EncodeChangeRequests([]ChangeRequest{Number("p", v)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeChangeRequests(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0].Number != v {
		t.Errorf("number = %v, want %v (bit-exact)", out[0].Number, v)
	}
}
