package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/reconcile"
	"github.com/dvloznov/statement-import/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const uploadPrefix = "imports"

// Uploader stores uploaded files in GCS.
type Uploader interface {
	UploadReader(ctx context.Context, bucket, object, contentType string, r io.Reader) (string, error)
}

// ImportsHandler exposes import sessions.
type ImportsHandler struct {
	registry  *session.Registry
	publisher jobs.Publisher
	presets   csvimport.Presets
	uploader  Uploader
	bucket    string
	maxBytes  int64
	log       zerolog.Logger
}

// NewImportsHandler creates an imports handler. uploader may be nil, in
// which case uploads are held in memory.
func NewImportsHandler(registry *session.Registry, publisher jobs.Publisher, presets csvimport.Presets, uploader Uploader, bucket string, maxBytes int64, log zerolog.Logger) *ImportsHandler {
	if maxBytes <= 0 {
		maxBytes = document.DefaultMaxBytes
	}
	return &ImportsHandler{
		registry:  registry,
		publisher: publisher,
		presets:   presets,
		uploader:  uploader,
		bucket:    bucket,
		maxBytes:  maxBytes,
		log:       log,
	}
}

type mappingRequest struct {
	Preset      string `json:"preset"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

// resolve returns nil when the request names no mapping at all.
func (m mappingRequest) resolve(presets csvimport.Presets) (*domain.ColumnMapping, error) {
	if m.Preset != "" {
		cm, ok := presets.Lookup(m.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", m.Preset)
		}
		return &cm, nil
	}
	cm := domain.ColumnMapping{Date: m.Date, Description: m.Description, Amount: m.Amount, Type: m.Type}
	if cm == (domain.ColumnMapping{}) {
		return nil, nil
	}
	if err := cm.Validate(); err != nil {
		return nil, err
	}
	return &cm, nil
}

// CreateImport handles POST /api/imports.
// Multipart uploads carry the file in "file" and optional mapping fields;
// JSON bodies reference an existing object: {"uri": "gs://...", "name": "..."}.
func (h *ImportsHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fh document.FileHandle
	var mreq mappingRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Could not read upload")
			return
		}
		if int64(len(data)) > h.maxBytes {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}

		fh = document.FileHandle{Name: filepath.Base(header.Filename), Data: data}
		mreq = mappingRequest{
			Preset:      r.FormValue("preset"),
			Date:        r.FormValue("date_column"),
			Description: r.FormValue("description_column"),
			Amount:      r.FormValue("amount_column"),
			Type:        r.FormValue("type_column"),
		}

		if r.FormValue("upload") == "gcs" {
			uri, err := h.upload(ctx, fh)
			if err != nil {
				h.log.Error().Err(err).Str("file", fh.Name).Msg("Failed to upload file")
				middleware.WriteError(w, http.StatusBadGateway, "Failed to upload file")
				return
			}
			fh = document.FileHandle{Name: fh.Name, URI: uri}
		}
	} else {
		var req struct {
			URI     string         `json:"uri"`
			Name    string         `json:"name"`
			Mapping mappingRequest `json:"mapping"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !strings.HasPrefix(req.URI, "gs://") {
			middleware.WriteError(w, http.StatusBadRequest, "uri must be a gs:// object")
			return
		}
		name := req.Name
		if name == "" {
			name = gcsuploader.ExtractFilenameFromGCSURI(req.URI)
		}
		fh = document.FileHandle{Name: name, URI: req.URI}
		mreq = req.Mapping
	}

	mapping, err := mreq.resolve(h.presets)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.registry.Create()
	if err := s.SelectFile(fh); err != nil {
		h.writeSessionError(w, err, "Failed to create import")
		return
	}
	if mapping != nil {
		if err := s.SetMapping(*mapping); err != nil {
			h.writeSessionError(w, err, "Failed to set mapping")
			return
		}
	}

	h.log.Info().Str("session_id", s.ID()).Str("file", fh.Name).Msg("Import session created")
	middleware.WriteJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *ImportsHandler) upload(ctx context.Context, fh document.FileHandle) (string, error) {
	if h.uploader == nil || h.bucket == "" {
		return "", errors.New("GCS uploads are not configured")
	}
	object := gcsuploader.ObjectName(uploadPrefix, uuid.NewString(), fh.Name, time.Now().UTC())
	mediaType := document.DetectMediaType(fh.Name, fh.Data)
	return h.uploader.UploadReader(ctx, h.bucket, object, mediaType, bytes.NewReader(fh.Data))
}

// ListImports handles GET /api/imports.
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	snaps := h.registry.List()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": snaps,
		"count":   len(snaps),
	})
}

// GetImport handles GET /api/imports/{id}.
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// SetMapping handles POST /api/imports/{id}/mapping.
func (h *ImportsHandler) SetMapping(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mapping, err := req.resolve(h.presets)
	if err != nil || mapping == nil {
		middleware.WriteError(w, http.StatusBadRequest, "A preset or the date, description and amount columns are required")
		return
	}
	if err := s.SetMapping(*mapping); err != nil {
		h.writeSessionError(w, err, "Failed to set mapping")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// StartImport handles POST /api/imports/{id}/start.
func (h *ImportsHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.State().Phase() != session.PhaseIdle {
		middleware.WriteError(w, http.StatusConflict, "Import cannot be started in its current state")
		return
	}
	h.enqueue(w, r, s, &jobs.ExtractJob{Type: jobs.JobTypeExtract, SessionID: s.ID(), FileName: s.Snapshot().File})
}

// SubmitPassword handles POST /api/imports/{id}/password.
func (h *ImportsHandler) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}
	if s.State().Phase() != session.PhaseNeedsPassword {
		middleware.WriteError(w, http.StatusConflict, "Import is not waiting for a password")
		return
	}
	h.enqueue(w, r, s, &jobs.ExtractJob{Type: jobs.JobTypeSubmitPassword, SessionID: s.ID(), FileName: s.Snapshot().File, Password: req.Password})
}

func (h *ImportsHandler) enqueue(w http.ResponseWriter, r *http.Request, s *session.Session, job *jobs.ExtractJob) {
	if err := h.publisher.PublishExtract(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID()).Msg("Failed to enqueue extraction job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue extraction job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("session_id", s.ID()).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": s.ID(),
		"status":     string(job.Status),
	})
}

type selectionRequest struct {
	Action string   `json:"action"` // select, deselect, toggle, select_all, clear
	IDs    []string `json:"ids"`
	Type   string   `json:"type"`
}

// UpdateSelection handles POST /api/imports/{id}/selection.
func (h *ImportsHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var edit func(b *reconcile.Batch)
	switch req.Action {
	case "select":
		edit = func(b *reconcile.Batch) {
			for _, id := range req.IDs {
				b.Select(id)
			}
		}
	case "deselect":
		edit = func(b *reconcile.Batch) {
			for _, id := range req.IDs {
				b.Deselect(id)
			}
		}
	case "toggle":
		edit = func(b *reconcile.Batch) {
			for _, id := range req.IDs {
				b.Toggle(id)
			}
		}
	case "select_all":
		t, ok := domain.ParseTransactionType(req.Type)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
			return
		}
		edit = func(b *reconcile.Batch) { b.SelectAll(t) }
	case "clear":
		edit = func(b *reconcile.Batch) { b.ClearSelection() }
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Unknown selection action")
		return
	}

	if err := s.Edit(edit); err != nil {
		h.writeSessionError(w, err, "Failed to update selection")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// Categorize handles POST /api/imports/{id}/categorize. Without ids the
// category goes to the current selection, which is then cleared.
func (h *ImportsHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		CategoryID string   `json:"category_id"`
		IDs        []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	updated := 0
	err := s.Edit(func(b *reconcile.Batch) {
		if len(req.IDs) == 0 {
			updated = b.AssignCategory(req.CategoryID)
			return
		}
		for _, id := range req.IDs {
			if b.SetCategory(id, req.CategoryID) {
				updated++
			}
		}
	})
	if err != nil {
		h.writeSessionError(w, err, "Failed to categorize")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
		"import":  s.Snapshot(),
	})
}

// DeleteCandidate handles DELETE /api/imports/{id}/candidates/{cid}.
func (h *ImportsHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	cid := r.PathValue("cid")

	found := false
	if err := s.Edit(func(b *reconcile.Batch) { found = b.Delete(cid) }); err != nil {
		h.writeSessionError(w, err, "Failed to delete candidate")
		return
	}
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "Candidate not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteSelected handles POST /api/imports/{id}/delete-selected.
func (h *ImportsHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	deleted := 0
	if err := s.Edit(func(b *reconcile.Batch) { deleted = b.DeleteSelected() }); err != nil {
		h.writeSessionError(w, err, "Failed to delete candidates")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
		"import":  s.Snapshot(),
	})
}

// Commit handles POST /api/imports/{id}/commit.
func (h *ImportsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	before := s.State().Phase()
	n, err := s.Commit(r.Context(), req.AccountID)
	if err != nil {
		// A store rejection moves a ready session to error; the batch is kept.
		if snap := s.Snapshot(); before == session.PhaseReady && snap.Phase == session.PhaseFailed {
			middleware.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":  snap.Message,
				"import": snap,
			})
			return
		}
		h.writeSessionError(w, err, "Failed to commit import")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"committed": n,
		"import":    s.Snapshot(),
	})
}

// Retry handles POST /api/imports/{id}/retry.
func (h *ImportsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Retry(); err != nil {
		h.writeSessionError(w, err, "Failed to retry import")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteImport handles DELETE /api/imports/{id}.
func (h *ImportsHandler) DeleteImport(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.PathValue("id")); err != nil {
		h.writeSessionError(w, err, "Failed to delete import")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportsHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Import not found")
		return nil, false
	}
	return s, true
}

func (h *ImportsHandler) writeSessionError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Import not found")
	case errors.Is(err, session.ErrBusy):
		middleware.WriteError(w, http.StatusConflict, "Import is busy")
	case errors.Is(err, session.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, "Operation not allowed in the current state")
	case errors.Is(err, session.ErrNoAccount), errors.Is(err, session.ErrEmptyBatch):
		middleware.WriteError(w, http.StatusBadRequest, errorText(err))
	case errors.Is(err, session.ErrUnknownAccount), errors.Is(err, session.ErrUnknownCategory):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// errorText returns the innermost sentinel text of a session error.
func errorText(err error) string {
	for _, sentinel := range []error{session.ErrNoAccount, session.ErrEmptyBatch} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
