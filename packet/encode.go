package packet

import (
	"encoding/binary"
	"math"
	"strconv"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

const landmarkSize = 16 // 4 × f32
const rectSize = 20     // 5 × f32

// EncodeChangeRequests serializes queued option updates for graph-configure.
func EncodeChangeRequests(reqs []ChangeRequest) ([]byte, error) {
	buf := make([]byte, 0, 16*len(reqs)+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(reqs)))

	for i, req := range reqs {
		if req.Param == "" {
			return nil, rterrors.New(rterrors.PhaseEncode, rterrors.KindInvalidInput).
				Path("request", itoa(i)).
				Detail("empty param name").
				Build()
		}
		buf = appendString(buf, req.Param)
		buf = append(buf, byte(req.Kind))
		switch req.Kind {
		case KindNumber:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(req.Number))
		case KindBool:
			if req.Boolean {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case KindText:
			buf = appendString(buf, req.Text)
		default:
			return nil, rterrors.New(rterrors.PhaseEncode, rterrors.KindInvalidInput).
				Path("request", itoa(i)).
				Detail("unknown change request kind %d", req.Kind).
				Build()
		}
	}
	return buf, nil
}

// EncodeWants serializes an ordered stream-name list for graph-attach.
func EncodeWants(wants []string) []byte {
	buf := make([]byte, 0, 16*len(wants)+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(wants)))
	for _, w := range wants {
		buf = appendString(buf, w)
	}
	return buf
}

// EncodeVector serializes a result vector. The graph engine is the usual
// producer; this encoder backs tests and synthetic graph fixtures.
func EncodeVector(packets []Packet) ([]byte, error) {
	buf := make([]byte, 0, 64*len(packets)+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(packets)))

	for i, p := range packets {
		buf = append(buf, byte(p.Tag))
		switch p.Tag {
		case TagLandmarkList:
			payload := make([]byte, 0, 4+landmarkSize*len(p.Landmarks))
			payload = binary.LittleEndian.AppendUint32(payload, uint32(len(p.Landmarks)))
			for _, lm := range p.Landmarks {
				payload = appendF32(payload, lm.X)
				payload = appendF32(payload, lm.Y)
				payload = appendF32(payload, lm.Z)
				payload = appendF32(payload, lm.Visibility)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
			buf = append(buf, payload...)
		case TagRect:
			if p.Rect == nil {
				return nil, rterrors.New(rterrors.PhaseEncode, rterrors.KindInvalidInput).
					Path("packet", itoa(i)).
					Detail("rect packet without rect payload").
					Build()
			}
			buf = binary.LittleEndian.AppendUint32(buf, rectSize)
			buf = appendF32(buf, p.Rect.XCenter)
			buf = appendF32(buf, p.Rect.YCenter)
			buf = appendF32(buf, p.Rect.Width)
			buf = appendF32(buf, p.Rect.Height)
			buf = appendF32(buf, p.Rect.Rotation)
		case TagRaw:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Raw)))
			buf = append(buf, p.Raw...)
		default:
			return nil, rterrors.New(rterrors.PhaseEncode, rterrors.KindInvalidInput).
				Path("packet", itoa(i)).
				Detail("unknown packet tag %d", p.Tag).
				Build()
		}
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendF32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
