package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/attendance/internal/api/problem"
	"github.com/Togather-Foundation/attendance/internal/domain/certificates"
)

type CertificatesHandler struct {
	Service *certificates.Service
	Env     string
}

func NewCertificatesHandler(service *certificates.Service, env string) *CertificatesHandler {
	return &CertificatesHandler{Service: service, Env: env}
}

// Issue handles GET and POST /certificado/{id}. The PDF is returned inline;
// the emailed copy is sent in the background.
func (h *CertificatesHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id, ok := participantID(w, r, h.Env)
	if !ok {
		return
	}

	cert, err := h.Service.Issue(r.Context(), id)
	if errors.Is(err, certificates.ErrRender) {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeRender, "Certificate generation failed", err, h.Env)
		return
	}
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	w.Header().Set("Content-Type", cert.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", cert.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(cert.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cert.Data)
}
