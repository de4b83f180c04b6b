package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := NewFrame([]byte("hello"))
	buf := Encode(f)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, FrameType, got.Type)
	assert.Equal(t, FrameTag, got.Tag)
	assert.Equal(t, uint32(5), got.PayloadSize)
	assert.Equal(t, []byte("hello"), got.Payload)
}

func TestDecodeHeaderTagMismatch(t *testing.T) {
	buf := Encode(NewFrame([]byte("hello")))
	buf[6] = 0x81 // third byte of the tag word
	_, err := DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], 0)
	payload, err := ReadFrame(bytes.NewReader(hdr[:]), 1024)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestReadFrameTooLarge(t *testing.T) {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], 101)
	_, err := ReadFrame(bytes.NewReader(hdr[:]), 100)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameExactCap(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 100)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, payload))
	got, err := ReadFrame(&buf, 100)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameIntegrityRawBytes(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x01, 0xC0, 0x80, 0xC0, 0x80, 0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	payload, err := ReadFrame(bytes.NewReader(raw), 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	raw[6] = 0x81
	_, err = ReadFrame(bytes.NewReader(raw), 1024)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReadWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("payload")))
	got, err := ReadFrame(&buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
