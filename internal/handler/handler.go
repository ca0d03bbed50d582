package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/osdev-lab/fscore/internal/fs"
	"github.com/osdev-lab/fscore/internal/pkg/kerrors"
	"github.com/osdev-lab/fscore/pkg/binary"
)

// Handler exposes the syscall surface over HTTP. Each client token owns one
// process (descriptor table plus working directory); init creates it and
// release tears it down.
type Handler struct {
	fs *fs.FS

	mu       sync.Mutex
	sessions map[string]*fs.Proc
}

func NewHandler(filesystem *fs.FS) *Handler {
	return &Handler{
		fs:       filesystem,
		sessions: make(map[string]*fs.Proc),
	}
}

// proc resolves the token's process.
func (h *Handler) proc(token string) (*fs.Proc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.sessions[token]
	if !ok {
		return nil, kerrors.ErrInvalidArgument
	}
	return p, nil
}

func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
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

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[token]; ok {
		binary.WriteResponse(w, 0, nil)
		return
	}
	p, err := h.fs.NewProc(ctx)
	if err != nil {
		binary.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	h.sessions[token] = p

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
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

	h.mu.Lock()
	p, ok := h.sessions[token]
	delete(h.sessions, token)
	h.mu.Unlock()
	if !ok {
		binary.WriteResponse(w, kerrors.EINVAL_NEG, nil)
		return
	}
	p.Release(ctx)

	binary.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"fscore-server"}`))
}

// ReleaseAll tears down every live session, used on shutdown.
func (h *Handler) ReleaseAll(ctx context.Context) {
	h.mu.Lock()
	procs := make([]*fs.Proc, 0, len(h.sessions))
	for token, p := range h.sessions {
		procs = append(procs, p)
		delete(h.sessions, token)
	}
	h.mu.Unlock()

	for _, p := range procs {
		p.Release(ctx)
	}
}

func mapErrorToCode(err error) int64 {
	return -kerrors.CodeOf(err)
}
