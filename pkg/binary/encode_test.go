package binary

import (
	"encoding/binary"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-lab/fscore/internal/models"
)

func TestEncodeStatLayout(t *testing.T) {
	st := &models.Stat{
		Dev:   1,
		Ino:   7,
		Kind:  models.KindFile,
		Nlink: 2,
		Size:  1024,
	}

	data, err := EncodeStat(st)
	require.NoError(t, err)
	require.Len(t, data, 24)

	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[8:10]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[10:12]))
	assert.Equal(t, uint64(1024), binary.LittleEndian.Uint64(data[16:24]))
}

func TestWriteResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteResponse(rec, -2, []byte("tail")))

	body := rec.Body.Bytes()
	require.Len(t, body, 12)
	assert.Equal(t, int64(-2), int64(binary.LittleEndian.Uint64(body[:8])))
	assert.Equal(t, "tail", string(body[8:]))
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestWriteStringResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteStringResponse(rec, 0, "/target"))

	body := rec.Body.Bytes()
	require.Len(t, body, 8+8+7)
	assert.Equal(t, int64(7), int64(binary.LittleEndian.Uint64(body[8:16])))
	assert.Equal(t, "/target", string(body[16:]))
}
