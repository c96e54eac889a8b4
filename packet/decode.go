package packet

import (
	"encoding/binary"
	"math"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

// maxVectorEntries bounds decoded counts so corrupt length prefixes cannot
// drive huge allocations.
const maxVectorEntries = 1 << 16

// cursor walks a byte buffer with bounds checking.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) u8(path ...string) (byte, error) {
	if c.remaining() < 1 {
		return 0, rterrors.OutOfBounds(rterrors.PhaseDecode, path, c.off, len(c.buf))
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u32(path ...string) (uint32, error) {
	if c.remaining() < 4 {
		return 0, rterrors.OutOfBounds(rterrors.PhaseDecode, path, c.off, len(c.buf))
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) f32(path ...string) (float32, error) {
	v, err := c.u32(path...)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (c *cursor) bytes(n uint32, path ...string) ([]byte, error) {
	if uint32(c.remaining()) < n {
		return nil, rterrors.OutOfBounds(rterrors.PhaseDecode, path, c.off, len(c.buf))
	}
	v := c.buf[c.off : c.off+int(n)]
	c.off += int(n)
	return v, nil
}

// DecodeVector parses a result vector emitted by the graph engine.
func DecodeVector(data []byte) ([]Packet, error) {
	c := &cursor{buf: data}

	count, err := c.u32("count")
	if err != nil {
		return nil, err
	}
	if count > maxVectorEntries {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, []string{"count"},
			"vector count "+itoa(int(count))+" exceeds limit")
	}

	packets := make([]Packet, 0, count)
	for i := uint32(0); i < count; i++ {
		path := []string{"packet", itoa(int(i))}

		tag, err := c.u8(path...)
		if err != nil {
			return nil, err
		}
		payloadLen, err := c.u32(path...)
		if err != nil {
			return nil, err
		}
		payload, err := c.bytes(payloadLen, path...)
		if err != nil {
			return nil, err
		}

		p, err := decodePayload(Tag(tag), payload, path)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}

	if c.remaining() != 0 {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, nil,
			itoa(c.remaining())+" trailing bytes after vector")
	}
	return packets, nil
}

func decodePayload(tag Tag, payload []byte, path []string) (Packet, error) {
	switch tag {
	case TagLandmarkList:
		lms, err := decodeLandmarks(payload, path)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Tag: TagLandmarkList, Landmarks: lms}, nil

	case TagRect:
		if len(payload) != rectSize {
			return Packet{}, rterrors.InvalidData(rterrors.PhaseDecode, path,
				"rect payload is "+itoa(len(payload))+" bytes, want "+itoa(rectSize))
		}
		c := &cursor{buf: payload}
		var r Rect
		r.XCenter, _ = c.f32(path...)
		r.YCenter, _ = c.f32(path...)
		r.Width, _ = c.f32(path...)
		r.Height, _ = c.f32(path...)
		r.Rotation, _ = c.f32(path...)
		return Packet{Tag: TagRect, Rect: &r}, nil

	case TagRaw:
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return Packet{Tag: TagRaw, Raw: raw}, nil

	default:
		return Packet{}, rterrors.InvalidData(rterrors.PhaseDecode, path,
			"unknown packet tag "+itoa(int(tag)))
	}
}

func decodeLandmarks(payload []byte, path []string) ([]Landmark, error) {
	c := &cursor{buf: payload}

	count, err := c.u32(path...)
	if err != nil {
		return nil, err
	}
	if count > maxVectorEntries {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, path,
			"landmark count "+itoa(int(count))+" exceeds limit")
	}
	if c.remaining() != int(count)*landmarkSize {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, path,
			"landmark payload is "+itoa(c.remaining())+" bytes, want "+itoa(int(count)*landmarkSize))
	}

	lms := make([]Landmark, count)
	for i := range lms {
		lms[i].X, _ = c.f32(path...)
		lms[i].Y, _ = c.f32(path...)
		lms[i].Z, _ = c.f32(path...)
		lms[i].Visibility, _ = c.f32(path...)
	}
	return lms, nil
}

// DecodeChangeRequests parses serialized change requests. The host is the
// usual producer; the decoder keeps the codec symmetric for fixtures.
func DecodeChangeRequests(data []byte) ([]ChangeRequest, error) {
	c := &cursor{buf: data}

	count, err := c.u32("count")
	if err != nil {
		return nil, err
	}
	if count > maxVectorEntries {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, []string{"count"},
			"request count "+itoa(int(count))+" exceeds limit")
	}

	reqs := make([]ChangeRequest, 0, count)
	for i := uint32(0); i < count; i++ {
		path := []string{"request", itoa(int(i))}

		param, err := decodeString(c, path)
		if err != nil {
			return nil, err
		}
		kind, err := c.u8(path...)
		if err != nil {
			return nil, err
		}

		req := ChangeRequest{Param: param, Kind: Kind(kind)}
		switch Kind(kind) {
		case KindNumber:
			lo, err := c.u32(path...)
			if err != nil {
				return nil, err
			}
			hi, err := c.u32(path...)
			if err != nil {
				return nil, err
			}
			req.Number = math.Float64frombits(uint64(hi)<<32 | uint64(lo))
		case KindBool:
			b, err := c.u8(path...)
			if err != nil {
				return nil, err
			}
			req.Boolean = b != 0
		case KindText:
			req.Text, err = decodeString(c, path)
			if err != nil {
				return nil, err
			}
		default:
			return nil, rterrors.InvalidData(rterrors.PhaseDecode, path,
				"unknown change request kind "+itoa(int(kind)))
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// DecodeWants parses a serialized stream-name list.
func DecodeWants(data []byte) ([]string, error) {
	c := &cursor{buf: data}

	count, err := c.u32("count")
	if err != nil {
		return nil, err
	}
	if count > maxVectorEntries {
		return nil, rterrors.InvalidData(rterrors.PhaseDecode, []string{"count"},
			"wants count "+itoa(int(count))+" exceeds limit")
	}

	wants := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		w, err := decodeString(c, []string{"want", itoa(int(i))})
		if err != nil {
			return nil, err
		}
		wants = append(wants, w)
	}
	return wants, nil
}

func decodeString(c *cursor, path []string) (string, error) {
	n, err := c.u32(path...)
	if err != nil {
		return "", err
	}
	b, err := c.bytes(n, path...)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
