package handler

import (
	"net/http"
	"strconv"

	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/pkg/binary"
)

func (h *Handler) HandleFtag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")
	key := r.URL.Query().Get("key")
	value := r.URL.Query().Get("value")

	if token == "" || fdStr == "" || key == "" {
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

	if err := p.Ftag(ctx, fd, key, value); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleFuntag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")
	key := r.URL.Query().Get("key")

	if token == "" || fdStr == "" || key == "" {
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

	if err := p.Funtag(ctx, fd, key); err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleGettag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	fdStr := r.URL.Query().Get("fd")
	key := r.URL.Query().Get("key")
	bufsizStr := r.URL.Query().Get("bufsiz")

	if token == "" || fdStr == "" || key == "" || bufsizStr == "" {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
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

	value, err := p.Gettag(ctx, fd, key, bufsiz)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	binary.WriteStringResponse(w, 0, value)
}
