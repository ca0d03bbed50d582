package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/pkg/binary"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
)

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")
	modeStr := r.URL.Query().Get("mode")

	if token == "" || path == "" || modeStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	mode, err := strconv.Atoi(modeStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	fd, err := p.Open(ctx, path, mode)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteInt64Response(w, 0, int64(fd))
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")

	if token == "" || fdStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Close(ctx, fd); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleDup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")

	if token == "" || fdStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	nfd, err := p.Dup(ctx, fd)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteInt64Response(w, 0, int64(nfd))
}

func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")
	lenStr := r.URL.Query().Get("len")

	if token == "" || fdStr == "" || lenStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	length, err := strconv.ParseUint(lenStr, 10, 32)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	buffer := make([]byte, length)
	read, err := p.Read(ctx, fd, buffer)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, buffer[:read])
}

func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const op = "handler.HandleWrite"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if r.Method != http.MethodGet {
		logger.Warn("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")
	lenStr := r.URL.Query().Get("len")
	dataBase64 := r.URL.Query().Get("data")

	if token == "" || fdStr == "" || lenStr == "" || dataBase64 == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	length, err := strconv.ParseUint(lenStr, 10, 32)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		logger.Warn("Failed to decode base64 data", slogext.Err(err))
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}
	if uint64(len(data)) < length {
		logger.Warn("Buffer size is less than requested length",
			slog.Uint64("requested_length", length),
			slog.Int("buffer_size", len(data)))
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	written, err := p.Write(ctx, fd, data[:length])
	if err != nil {
		logger.Error("Write failed", slogext.Err(err),
			slog.Int("fd", fd),
			slog.Uint64("length", length))
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteInt64Response(w, 0, int64(written))
}

func (h *Handler) HandleFstat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")

	if token == "" || fdStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	st, err := p.Fstat(ctx, fd)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := binary.EncodeStat(st)
	if err != nil {
		binary.WriteResponse(w, kerrors.ENOMEM_NEG, nil)
		return
	}

	binary.WriteResponse(w, 0, data)
}

func (h *Handler) HandlePipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	fd0, fd1, err := p.Pipe(ctx)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	// Both descriptors in one payload: read end first.
	payload := make([]byte, 0, 16)
	payload = appendInt64(payload, int64(fd0))
	payload = appendInt64(payload, int64(fd1))
	binary.WriteResponse(w, 0, payload)
}

func appendInt64(dst []byte, v int64) []byte {
	for i := 0; i < 8; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}
