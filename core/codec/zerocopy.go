package codec

import "encoding/binary"

// ZeroCopyReader decodes MQTT wire primitives directly out of a byte slice
// without allocating, except where the destination type forces a copy
// (strings, and VBI backtracking). It never blocks: any attempt to read
// past the end of the slice returns ErrBufferTooShort so that a caller
// fed a partial packet can simply wait for more bytes and retry decoding
// from the start of the same slice.
type ZeroCopyReader struct {
	data   []byte
	offset int
}

// NewZeroCopyReader wraps data for zero-copy decoding.
func NewZeroCopyReader(data []byte) *ZeroCopyReader {
	return &ZeroCopyReader{data: data}
}

// Offset returns the number of bytes consumed so far.
func (r *ZeroCopyReader) Offset() int {
	return r.offset
}

// Remaining returns the number of unconsumed bytes.
func (r *ZeroCopyReader) Remaining() int {
	return len(r.data) - r.offset
}

// Read implements io.Reader, copying into p. It allows a ZeroCopyReader to
// be passed to a packet's standard Unpack(io.Reader) method as a fallback.
func (r *ZeroCopyReader) Read(p []byte) (int, error) {
	if r.Remaining() == 0 {
		return 0, ErrBufferTooShort
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

// ReadByte reads a single byte.
func (r *ZeroCopyReader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrBufferTooShort
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

// ReadUint16 reads a Two Byte Integer.
func (r *ZeroCopyReader) ReadUint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrBufferTooShort
	}
	v := binary.BigEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

// ReadUint32 reads a Four Byte Integer.
func (r *ZeroCopyReader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrBufferTooShort
	}
	v := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadVBI reads a Variable Byte Integer.
func (r *ZeroCopyReader) ReadVBI() (int, error) {
	var value, multiplier int
	start := r.offset
	for i := 0; i < 4; i++ {
		if r.Remaining() < 1 {
			r.offset = start
			return 0, ErrBufferTooShort
		}
		b := r.data[r.offset]
		r.offset++
		value += int(b&0x7F) * pow128(multiplier)
		if b&0x80 == 0 {
			return value, nil
		}
		multiplier++
	}
	return 0, ErrMalformedVBI
}

// ReadBytesNoCopy reads a Two Byte Integer length prefix followed by that
// many bytes, returning a subslice of the original data without copying.
// The returned slice is only valid as long as the underlying buffer isn't
// reused or modified.
func (r *ZeroCopyReader) ReadBytesNoCopy() ([]byte, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if r.Remaining() < int(length) {
		return nil, ErrBufferTooShort
	}
	b := r.data[r.offset : r.offset+int(length)]
	r.offset += int(length)
	return b, nil
}

// ReadString reads a length-prefixed UTF-8 string. Unlike ReadBytesNoCopy,
// this always allocates, since Go strings are immutable. The bytes must be
// well-formed UTF-8 with no U+0000 or surrogate code point, or
// ErrMalformedString is returned.
func (r *ZeroCopyReader) ReadString() (string, error) {
	b, err := r.ReadBytesNoCopy()
	if err != nil {
		return "", err
	}
	if err := validateUTF8String(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadRemaining returns the unconsumed tail of the buffer without copying,
// and advances the reader to the end.
func (r *ZeroCopyReader) ReadRemaining() []byte {
	b := r.data[r.offset:]
	r.offset = len(r.data)
	return b
}
