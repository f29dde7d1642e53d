package game

import (
	"math"
	"testing"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestStrokeCodec(t *testing.T) {
	t.Parallel()
	in := domain.Stroke{ID: "s1", Color: "#ff0000", Width: 3.5, Points: pts(0, 0, 10.25, -4, 20, 8)}

	out, err := DecodeStroke(EncodeStroke(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeStroke_SkipsUnknownFields(t *testing.T) {
	t.Parallel()
	data := EncodeStroke(domain.Stroke{ID: "s1", Points: pts(1, 2, 3, 4)})
	data = protowire.AppendTag(data, 15, protowire.VarintType)
	data = protowire.AppendVarint(data, 99)

	out, err := DecodeStroke(data)
	require.NoError(t, err)
	assert.Equal(t, "s1", out.ID)
	assert.Equal(t, pts(1, 2, 3, 4), out.Points)
}

func TestDecodeStroke_Malformed(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		desc string
		data []byte
	}{
		{"truncated tag", []byte{0xff}},
		{"truncated string", []byte{0x0a, 0x05, 'a'}},
		{"odd point payload", append(protowire.AppendTag(nil, 4, protowire.BytesType), 0x03, 1, 2, 3)},
		{"NaN coordinate", EncodeStroke(domain.Stroke{Width: 2, Points: pts(0, 0, math.NaN(), 1)})},
		{"infinite coordinate", EncodeStroke(domain.Stroke{Width: 2, Points: pts(0, math.Inf(-1), 1, 1)})},
		{"infinite width", EncodeStroke(domain.Stroke{Width: math.Inf(1), Points: pts(0, 0, 1, 1)})},
		{"NaN width", EncodeStroke(domain.Stroke{Width: math.NaN(), Points: pts(0, 0, 1, 1)})},
	}
	for _, tc := range testCases {
		_, err := DecodeStroke(tc.data)
		assert.ErrorIs(t, err, ErrMalformedStroke, tc.desc)
	}
}

func TestDecodeAction(t *testing.T) {
	t.Parallel()

	a, err := DecodeAction([]byte(`{"type":"choose_word","index":2}`), false)
	require.NoError(t, err)
	assert.Equal(t, Action{Type: ActionChooseWord, Index: 2}, a)

	a, err = DecodeAction(EncodeStroke(domain.Stroke{ID: "s", Points: pts(0, 0, 1, 1)}), true)
	require.NoError(t, err)
	assert.Equal(t, ActionStroke, a.Type)
	require.NotNil(t, a.Stroke)
	assert.Equal(t, "s", a.Stroke.ID)

	_, err = DecodeAction([]byte(`{not json`), false)
	assert.Error(t, err)
}
