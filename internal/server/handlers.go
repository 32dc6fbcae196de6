package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/raphaelgruber/plagscan/internal/archive"
	"github.com/raphaelgruber/plagscan/internal/compare"
	"github.com/raphaelgruber/plagscan/internal/service"
)

type textPairRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "plagscan API is running",
		"version": s.version,
		"scorer":  s.svc.Scorer().Name(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.svc.Health(r.Context())
	code := http.StatusOK
	if !h.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics().Snapshot())
}

func (s *Server) handleAnalyzeSimple(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTextPair(w, r)
	if !ok {
		return
	}
	res, err := s.svc.CompareTexts(r.Context(), req.TextA, req.TextB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeParaphrase(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTextPair(w, r)
	if !ok {
		return
	}
	res, err := s.svc.CompareSentences(r.Context(), req.TextA, req.TextB)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decodeTextPair(w http.ResponseWriter, r *http.Request) (textPairRequest, bool) {
	var req textPairRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: service.KindInput.String()})
		return req, false
	}
	return req, true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large", Kind: service.KindInput.String()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form", Kind: service.KindInput.String()})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("assignment_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "assignment_file is required", Kind: service.KindInput.String()})
		return
	}
	defer file.Close()

	req := service.BatchRequest{
		Archive:       file,
		ArchiveName:   header.Filename,
		Label:         r.FormValue("assignment_name"),
		Extensions:    r.FormValue("allowed_extensions"),
		DetectionMode: r.FormValue("detection_mode"),
	}

	if raw := strings.TrimSpace(r.FormValue("similarity_threshold")); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "similarity_threshold must be a number", Kind: service.KindInput.String()})
			return
		}
		req.Threshold = &threshold
	}
	if req.Mode, err = archive.ParseMode(r.FormValue("archive_mode")); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: service.KindInput.String()})
		return
	}
	if req.Compare, err = compare.ParseMode(r.FormValue("comparison_mode")); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: service.KindInput.String()})
		return
	}

	rep, err := s.svc.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// writeError maps a service error to a status code and a client-safe body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	msg := "internal error"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Public()
	}

	code := http.StatusInternalServerError
	switch kind {
	case service.KindInput:
		code = http.StatusBadRequest
	case service.KindCapability:
		code = http.StatusServiceUnavailable
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: msg, Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
