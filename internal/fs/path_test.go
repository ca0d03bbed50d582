package fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextElem(t *testing.T) {
	tests := []struct {
		path string
		elem string
		rest string
	}{
		{"a/bb/c", "a", "bb/c"},
		{"///a//bb", "a", "bb"},
		{"a", "a", ""},
		{"a/", "a", ""},
		{"", "", ""},
		{"////", "", ""},
		{strings.Repeat("x", DirNameLen+3), strings.Repeat("x", DirNameLen), ""},
	}
	for _, tt := range tests {
		elem, rest := nextElem(tt.path)
		assert.Equal(t, tt.elem, elem, "path %q", tt.path)
		assert.Equal(t, tt.rest, rest, "path %q", tt.path)
	}
}

func TestDirentCodec(t *testing.T) {
	buf := encodeDirent("init", 42)
	assert.Len(t, buf, direntSize)

	ino, name := decodeDirent(buf)
	assert.Equal(t, uint32(42), ino)
	assert.Equal(t, "init", name)

	// A zeroed slot decodes as a free entry.
	ino, name = decodeDirent(make([]byte, direntSize))
	assert.Equal(t, uint32(0), ino)
	assert.Equal(t, "", name)
}
