// Package binary renders syscall results in the fixed little-endian wire
// format the client library decodes: an int64 return code followed by an
// operation-specific payload.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/osdev-lab/fscore/internal/models"
)

// EncodeStat lays out a stat record as the client's struct stat: dev and
// ino as uint32, then kind, nlink, major, minor as int16, then size as
// int64.
func EncodeStat(st *models.Stat) ([]byte, error) {
	buf := new(bytes.Buffer)

	for _, field := range []struct {
		name  string
		value any
	}{
		{"dev", st.Dev},
		{"ino", st.Ino},
		{"kind", st.Kind},
		{"nlink", st.Nlink},
		{"major", st.Major},
		{"minor", st.Minor},
		{"size", st.Size},
	} {
		if err := binary.Write(buf, binary.LittleEndian, field.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", field.name, err)
		}
	}

	return buf.Bytes(), nil
}

// WriteResponse writes the int64 return code followed by data (if any).
func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}
	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}

func WriteInt64Response(w http.ResponseWriter, code int64, value int64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

// WriteStringResponse writes the code, the string's length as int64, then
// the raw bytes.
func WriteStringResponse(w http.ResponseWriter, code int64, s string) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int64(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return WriteResponse(w, code, buf.Bytes())
}
