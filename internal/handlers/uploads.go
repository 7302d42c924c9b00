package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// Uploads stores multipart files as temporary files for the services to hand
// to object storage.
type Uploads struct {
	Dir      string
	MaxBytes int64
}

// parse reads the multipart form of r within the configured size limit.
func (u Uploads) parse(w http.ResponseWriter, r *http.Request) error {
	if u.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, u.MaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return apperr.Validation("invalid multipart form")
	}
	return nil
}

// save copies the named form file into a temporary file and returns its path.
// A missing optional file yields "".
func (u Uploads) save(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", apperr.Validation("invalid " + field + " upload")
	}
	defer file.Close()

	dir := u.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Internal("prepare upload directory", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp(dir, field+"-*"+ext)
	if err != nil {
		return "", apperr.Internal("create upload file", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", apperr.Internal("write upload file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", apperr.Internal("write upload file", err)
	}
	return tmp.Name(), nil
}

// cleanup removes temporary files the services did not consume.
func cleanup(r *http.Request, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(r.Context()).Warn("remove upload file", "path", p, "error", err)
		}
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
