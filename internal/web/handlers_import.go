package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/logging"
	"github.com/Joshypeace/PharmaStore/internal/sheet"
)

// multipartOverhead is allowed on top of MaxFileSize for boundaries and
// form fields.
const multipartOverhead = 64 << 10

var errFileTooLarge = errors.New("file too large")

type importRequest struct {
	Items      []map[string]any `json:"items"`
	Duplicates string           `json:"duplicates" validate:"omitempty,oneof=allow reject"`
}

// handleImport accepts a multipart "file" (CSV or XLSX) or a JSON body of
// {"items": [...]} and imports every row independently. The response is
// 201 even when some rows fail; they are listed under errors.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if d := s.cfg.Import.Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := s.deps.Imports.Acquire(ctx); err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err)
		return
	}
	defer s.deps.Imports.Release()

	rows, opts, err := s.readImport(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.deps.Inventory.ImportBatch(ctx, rows, actorFrom(r), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (s *Server) readImport(w http.ResponseWriter, r *http.Request) ([]core.ImportRow, core.ImportOptions, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.readImportFile(w, r)
	}
	return s.readImportJSON(w, r)
}

func (s *Server) readImportFile(w http.ResponseWriter, r *http.Request) ([]core.ImportRow, core.ImportOptions, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, core.ImportOptions{}, uploadError(err, maxSize)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	opts, err := importOptions(r.FormValue("duplicates"))
	if err != nil {
		return nil, opts, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, opts, uploadError(err, maxSize)
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, opts, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", errFileTooLarge, header.Size, maxSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, opts, fmt.Errorf("read upload: %w", err)
	}

	sh, err := sheet.Parse(header.Filename, data)
	if err != nil {
		return nil, opts, err
	}
	rows, err := core.ParseImportRows(sh.Header, sh.Rows)
	if err != nil {
		return nil, opts, err
	}

	logging.FromContext(r.Context()).Info("import file parsed",
		"file_name", header.Filename,
		"format", sh.Format,
		"size", len(data),
		"rows", len(rows),
	)
	return rows, opts, nil
}

func (s *Server) readImportJSON(w http.ResponseWriter, r *http.Request) ([]core.ImportRow, core.ImportOptions, error) {
	var req importRequest
	if err := s.decodeJSON(w, r, s.cfg.Import.MaxFileSize, &req); err != nil {
		return nil, core.ImportOptions{}, err
	}
	opts, err := importOptions(req.Duplicates)
	if err != nil {
		return nil, opts, err
	}
	if len(req.Items) == 0 {
		// ImportBatch reports the empty batch.
		return nil, opts, nil
	}

	header, raw := core.RecordsToRaw(req.Items)
	rows, err := core.ParseImportRows(header, raw)
	if err != nil {
		return nil, opts, err
	}
	return rows, opts, nil
}

// importOptions leaves the service default in place when policy is blank.
func importOptions(policy string) (core.ImportOptions, error) {
	if strings.TrimSpace(policy) == "" {
		return core.ImportOptions{}, nil
	}
	p, err := core.ParseDuplicatePolicy(policy)
	if err != nil {
		return core.ImportOptions{}, err
	}
	return core.ImportOptions{Duplicates: p}, nil
}

func uploadError(err error, maxSize int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return &core.ValidationError{Field: "file", Message: "no file provided"}
	default:
		return &core.ValidationError{Field: "file", Message: "invalid upload: " + err.Error()}
	}
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := sheet.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf, format); err != nil {
		s.respondError(w, r, fmt.Errorf("write %s template: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", sheet.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheet.TemplateFileName(format)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Error("write template", "error", err)
	}
}
