package codec_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/flowmq/broker/core/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testString  = "test string"
	testBytes   = []byte("test bytes")
	maxUint16   = uint16(65535)
	maxUint32   = uint32(4294967295)
	maxVBI      = 268435455
	emptyBytes  = []byte{}
	longString  = string(bytes.Repeat([]byte("a"), 65535))
	utf8String  = "Hello 世界 🌍"
)

func TestEncodeDecodeBytes(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
	}{
		{desc: "normal bytes", input: testBytes},
		{desc: "empty bytes", input: emptyBytes},
		{desc: "utf8 bytes", input: []byte(utf8String)},
		{desc: "max length bytes", input: make([]byte, 65535)},
		{desc: "single byte", input: []byte{0x42}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			encoded := codec.EncodeBytes(tc.input)
			require.GreaterOrEqual(t, len(encoded), 2)

			decoded, err := codec.DecodeBytes(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, tc.input, decoded)
		})
	}
}

func TestEncodeDecodeString(t *testing.T) {
	cases := []struct {
		desc  string
		input string
	}{
		{desc: "normal string", input: testString},
		{desc: "empty string", input: ""},
		{desc: "utf8 string", input: utf8String},
		{desc: "max length string", input: longString},
		{desc: "topic filter characters", input: "test/topic/+/#"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			encoded := codec.EncodeString(tc.input)
			decoded, err := codec.DecodeString(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, tc.input, decoded)
		})
	}
}

func TestEncodeDecodeUint16(t *testing.T) {
	for _, v := range []uint16{0, 42, maxUint16, 12345, 255, 256} {
		encoded := codec.EncodeUint16(v)
		assert.Len(t, encoded, 2)

		decoded, err := codec.DecodeUint16(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 12345, maxUint32, 3600, 65535, 65536} {
		encoded := codec.EncodeUint32(v)
		assert.Len(t, encoded, 4)

		decoded, err := codec.DecodeUint32(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestEncodeDecodeVBI(t *testing.T) {
	cases := []struct {
		input       int
		expectedLen int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{maxVBI, 4},
		{1024, 2},
	}

	for _, tc := range cases {
		encoded := codec.EncodeVBI(tc.input)
		assert.Equal(t, tc.expectedLen, len(encoded))

		decoded, err := codec.DecodeVBI(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, tc.input, decoded)
	}
}

func TestDecodeVBIMaxLengthExceeded(t *testing.T) {
	malformed := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := codec.DecodeVBI(bytes.NewReader(malformed))
	assert.Equal(t, codec.ErrMaxLengthExceeded, err)
}

func TestDecodeByte(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
		want  byte
		err   error
	}{
		{desc: "decode byte", input: []byte{0x42}, want: 0x42},
		{desc: "decode zero byte", input: []byte{0x00}, want: 0x00},
		{desc: "decode max byte", input: []byte{0xFF}, want: 0xFF},
		{desc: "decode from empty reader", input: []byte{}, err: io.EOF},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			decoded, err := codec.DecodeByte(bytes.NewReader(tc.input))
			if tc.err != nil {
				assert.Equal(t, tc.err, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, decoded)
		})
	}
}

func TestDecodeUint16Errors(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
		err   error
	}{
		{desc: "empty reader", input: []byte{}, err: io.EOF},
		{desc: "incomplete data", input: []byte{0x42}, err: io.ErrUnexpectedEOF},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := codec.DecodeUint16(bytes.NewReader(tc.input))
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestDecodeUint32Errors(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
		err   error
	}{
		{desc: "empty reader", input: []byte{}, err: io.EOF},
		{desc: "3 bytes", input: []byte{0x00, 0x00, 0x00}, err: io.ErrUnexpectedEOF},
		{desc: "2 bytes", input: []byte{0x00, 0x00}, err: io.ErrUnexpectedEOF},
		{desc: "1 byte", input: []byte{0x00}, err: io.ErrUnexpectedEOF},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := codec.DecodeUint32(bytes.NewReader(tc.input))
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestDecodeBytesErrors(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
		err   error
	}{
		{desc: "empty reader", input: []byte{}, err: io.EOF},
		{desc: "incomplete length prefix", input: []byte{0x00}, err: io.ErrUnexpectedEOF},
		{desc: "length but no data", input: []byte{0x00, 0x05}, err: io.EOF},
		{desc: "length larger than available data", input: []byte{0x00, 0x10, 0x01, 0x02}, err: io.ErrUnexpectedEOF},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := codec.DecodeBytes(bytes.NewReader(tc.input))
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestDecodeStringErrors(t *testing.T) {
	cases := []struct {
		desc  string
		input []byte
		err   error
	}{
		{desc: "empty reader", input: []byte{}, err: io.EOF},
		{desc: "incomplete length prefix", input: []byte{0x00}, err: io.ErrUnexpectedEOF},
		{desc: "length but no data", input: []byte{0x00, 0x05}, err: io.EOF},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := codec.DecodeString(bytes.NewReader(tc.input))
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestDecodeStringMalformed(t *testing.T) {
	cases := []struct {
		desc  string
		bytes []byte
	}{
		{desc: "invalid utf8 byte sequence", bytes: []byte{0xFF, 0xFE, 0xFD}},
		{desc: "truncated multi-byte sequence", bytes: []byte{0xE2, 0x82}},
		{desc: "embedded null character", bytes: []byte("hello\x00world")},
		{desc: "encoded surrogate half U+D800", bytes: []byte{0xED, 0xA0, 0x80}},
		{desc: "encoded surrogate half U+DFFF", bytes: []byte{0xED, 0xBF, 0xBF}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			encoded := codec.EncodeBytes(tc.bytes)
			_, err := codec.DecodeString(bytes.NewReader(encoded))
			assert.ErrorIs(t, err, codec.ErrMalformedString)

			r := codec.NewZeroCopyReader(encoded)
			_, err = r.ReadString()
			assert.ErrorIs(t, err, codec.ErrMalformedString)
		})
	}
}

func TestEncodeBool(t *testing.T) {
	assert.Equal(t, byte(1), codec.EncodeBool(true))
	assert.Equal(t, byte(0), codec.EncodeBool(false))
}

func TestZeroCopyReaderRestart(t *testing.T) {
	full := append(codec.EncodeString("topic"), codec.EncodeUint16(7)...)

	for i := 0; i < len(full); i++ {
		r := codec.NewZeroCopyReader(full[:i])
		if _, err := r.ReadString(); err != nil {
			assert.ErrorIs(t, err, codec.ErrBufferTooShort)
		}
	}

	r := codec.NewZeroCopyReader(full)
	topic, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "topic", topic)

	id, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), id)
	assert.Equal(t, 0, r.Remaining())
}
