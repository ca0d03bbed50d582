package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/pkg/binary"
)

func (h *Handler) HandleMkdir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")

	if token == "" || path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Mkdir(ctx, path); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleMknod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")
	majorStr := r.URL.Query().Get("major")
	minorStr := r.URL.Query().Get("minor")

	if token == "" || path == "" || majorStr == "" || minorStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	major, err := strconv.ParseInt(majorStr, 10, 16)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}
	minor, err := strconv.ParseInt(minorStr, 10, 16)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Mknod(ctx, path, int16(major), int16(minor)); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	oldPath := r.URL.Query().Get("old")
	newPath := r.URL.Query().Get("new")

	if token == "" || oldPath == "" || newPath == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Link(ctx, oldPath, newPath); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")

	if token == "" || path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Unlink(ctx, path); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleSymlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	target := r.URL.Query().Get("target")
	path := r.URL.Query().Get("path")

	if token == "" || target == "" || path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Symlink(ctx, target, path); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleReadlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")
	bufsizStr := r.URL.Query().Get("bufsiz")

	if token == "" || path == "" || bufsizStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	bufsiz, err := strconv.Atoi(bufsizStr)
	if err != nil {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	target, err := p.Readlink(ctx, path, bufsiz)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteStringResponse(w, 0, target)
}

func (h *Handler) HandleChdir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")

	if token == "" || path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	if err := p.Chdir(ctx, path); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleExec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	path := r.URL.Query().Get("path")
	argvStr := r.URL.Query().Get("argv")

	if token == "" || path == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	var argv []string
	if argvStr != "" {
		argv = strings.Split(argvStr, "\x00")
	}

	p, err := h.proc(token)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	status, err := p.Exec(ctx, path, argv)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteInt64Response(w, 0, int64(status))
}
