package packet

// Kind discriminates change request payloads.
type Kind uint8

const (
	KindNumber Kind = iota
	KindBool
	KindText
)

// ChangeRequest is a queued graph parameter update. Param names the side
// packet or calculator option inside the graph; exactly one of Number,
// Boolean, or Text is meaningful depending on Kind.
type ChangeRequest struct {
	Param   string
	Kind    Kind
	Number  float64
	Boolean bool
	Text    string
}

// Number builds a numeric change request.
func Number(param string, v float64) ChangeRequest {
	return ChangeRequest{Param: param, Kind: KindNumber, Number: v}
}

// Bool builds a boolean change request.
func Bool(param string, v bool) ChangeRequest {
	return ChangeRequest{Param: param, Kind: KindBool, Boolean: v}
}

// Text builds a string change request.
func Text(param string, v string) ChangeRequest {
	return ChangeRequest{Param: param, Kind: KindText, Text: v}
}

// Tag discriminates result packet payloads.
type Tag uint8

const (
	TagLandmarkList Tag = 1
	TagRect         Tag = 2
	TagRaw          Tag = 3
)

// Landmark is a normalized point with a visibility score. Coordinates are
// normalized to [0, 1] relative to frame width/height; Z uses roughly the
// same scale as X with the origin at the subject's center.
type Landmark struct {
	X          float32
	Y          float32
	Z          float32
	Visibility float32
}

// Rect is a normalized rotated rectangle.
type Rect struct {
	XCenter  float32
	YCenter  float32
	Width    float32
	Height   float32
	Rotation float32
}

// Packet is one entry of a result vector. Exactly one payload field is set
// according to Tag.
type Packet struct {
	Tag       Tag
	Landmarks []Landmark
	Rect      *Rect
	Raw       []byte
}
