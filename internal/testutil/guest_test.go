package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEB128(t *testing.T) {
	assert.Equal(t, []byte{0x00}, uleb(0))
	assert.Equal(t, []byte{0xe5, 0x8e, 0x26}, uleb(624485))
	assert.Equal(t, []byte{0x80, 0x08}, sleb(1024))
	assert.Equal(t, []byte{0x3f}, sleb(63))
	assert.Equal(t, []byte{0xc0, 0x00}, sleb(64))
	assert.Equal(t, []byte{0x7f}, sleb(-1))
}

func TestGuest_Header(t *testing.T) {
	b := Guest{ImportModule: "time", ImportName: "now_unix_seconds"}.Bytes()
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, b[:8])

	withData := Guest{Request: []byte("hi")}.Bytes()
	assert.Equal(t, byte('i'), withData[len(withData)-1])
}
