package game

import (
	"errors"
	"math"

	"github.com/lishuceo/draw-and-guess/domain"
	"google.golang.org/protobuf/encoding/protowire"
)

// Binary stroke frames are protobuf wire encoded:
//
//	1: id     (string)
//	2: color  (string)
//	3: width  (double)
//	4: points (packed double, x0 y0 x1 y1 ...)
const (
	strokeFieldID     protowire.Number = 1
	strokeFieldColor  protowire.Number = 2
	strokeFieldWidth  protowire.Number = 3
	strokeFieldPoints protowire.Number = 4
)

var ErrMalformedStroke = errors.New("malformed stroke frame")

func EncodeStroke(s domain.Stroke) []byte {
	var b []byte
	if s.ID != "" {
		b = protowire.AppendTag(b, strokeFieldID, protowire.BytesType)
		b = protowire.AppendString(b, s.ID)
	}
	if s.Color != "" {
		b = protowire.AppendTag(b, strokeFieldColor, protowire.BytesType)
		b = protowire.AppendString(b, s.Color)
	}
	b = protowire.AppendTag(b, strokeFieldWidth, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Width))

	packed := make([]byte, 0, len(s.Points)*16)
	for _, p := range s.Points {
		packed = protowire.AppendFixed64(packed, math.Float64bits(p.X))
		packed = protowire.AppendFixed64(packed, math.Float64bits(p.Y))
	}
	b = protowire.AppendTag(b, strokeFieldPoints, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b
}

// DecodeStroke skips unknown fields so older servers accept newer clients.
func DecodeStroke(data []byte) (domain.Stroke, error) {
	s := domain.Stroke{Points: []domain.Point{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return domain.Stroke{}, ErrMalformedStroke
		}
		data = data[n:]

		switch {
		case num == strokeFieldID && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return domain.Stroke{}, ErrMalformedStroke
			}
			s.ID, n = v, m
		case num == strokeFieldColor && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return domain.Stroke{}, ErrMalformedStroke
			}
			s.Color, n = v, m
		case num == strokeFieldWidth && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return domain.Stroke{}, ErrMalformedStroke
			}
			s.Width, n = math.Float64frombits(v), m
		case num == strokeFieldPoints && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 || len(v)%16 != 0 {
				return domain.Stroke{}, ErrMalformedStroke
			}
			for i := 0; i < len(v); i += 16 {
				x, _ := protowire.ConsumeFixed64(v[i:])
				y, _ := protowire.ConsumeFixed64(v[i+8:])
				s.Points = append(s.Points, domain.Point{X: math.Float64frombits(x), Y: math.Float64frombits(y)})
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return domain.Stroke{}, ErrMalformedStroke
			}
		}
		data = data[n:]
	}
	if !finiteStroke(s) {
		return domain.Stroke{}, ErrMalformedStroke
	}
	return s, nil
}

// finiteStroke rejects NaN and infinite values, which JSON cannot carry.
func finiteStroke(s domain.Stroke) bool {
	if !finite(s.Width) {
		return false
	}
	for _, p := range s.Points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
