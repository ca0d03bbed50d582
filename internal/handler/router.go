package handler

import (
	"net/http"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("/health", h.HandleHealthCheck)

	// Session endpoints
	mux.HandleFunc("/api/init", h.HandleInit)
	mux.HandleFunc("/api/release", h.HandleRelease)

	// Descriptor endpoints
	mux.HandleFunc("/api/open", h.HandleOpen)
	mux.HandleFunc("/api/close", h.HandleClose)
	mux.HandleFunc("/api/dup", h.HandleDup)
	mux.HandleFunc("/api/read", h.HandleRead)
	mux.HandleFunc("/api/write", h.HandleWrite)
	mux.HandleFunc("/api/fstat", h.HandleFstat)
	mux.HandleFunc("/api/pipe", h.HandlePipe)

	// Path endpoints
	mux.HandleFunc("/api/mkdir", h.HandleMkdir)
	mux.HandleFunc("/api/mknod", h.HandleMknod)
	mux.HandleFunc("/api/link", h.HandleLink)
	mux.HandleFunc("/api/unlink", h.HandleUnlink)
	mux.HandleFunc("/api/symlink", h.HandleSymlink)
	mux.HandleFunc("/api/readlink", h.HandleReadlink)
	mux.HandleFunc("/api/chdir", h.HandleChdir)
	mux.HandleFunc("/api/exec", h.HandleExec)

	// Tag endpoints
	mux.HandleFunc("/api/ftag", h.HandleFtag)
	mux.HandleFunc("/api/funtag", h.HandleFuntag)
	mux.HandleFunc("/api/gettag", h.HandleGettag)
}
