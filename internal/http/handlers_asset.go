package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	applog "github.com/mrx7355608/finance-app-2.0/internal/log"
	"github.com/mrx7355608/finance-app-2.0/internal/services"
)

const multipartMemory = 8 << 20

// handleUploadAssets stores the multipart "images" files with the uploader and
// returns their public URLs in the order they were sent. The UI then passes
// those URLs to createRecord.
func (s *Server) handleUploadAssets(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		writeMessage(w, http.StatusNotImplemented, "Image uploads are not configured.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest("Invalid multipart body."))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[core.FieldImages]
	if err := core.ValidateImageCount(len(files)); err != nil {
		writeError(w, r, err)
		return
	}

	dir, err := os.MkdirTemp("", "herdbook-upload-*")
	if err != nil {
		writeError(w, r, fmt.Errorf("create upload dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(files))
	for i, fh := range files {
		path, err := saveUpload(dir, i, fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		paths = append(paths, path)
	}

	urls, err := s.uploader.Upload(r.Context(), paths)
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAssets).ErrorContext(r.Context(), "Image upload failed",
			applog.FieldOperation, applog.OpUpload,
			"files", len(paths),
			applog.FieldError, err)
		writeMessage(w, http.StatusBadGateway, "Image upload failed. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, services.Result[[]string]{
		Message: fmt.Sprintf("Uploaded %d image(s).", len(urls)),
		Data:    urls,
	})
}

// saveUpload copies one part to dir. Only the extension of the client file
// name is kept.
func saveUpload(dir string, i int, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %d: %w", i, err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	path := filepath.Join(dir, fmt.Sprintf("%03d%s", i, ext))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload %d: %w", i, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write upload %d: %w", i, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload %d: %w", i, err)
	}
	return path, nil
}
