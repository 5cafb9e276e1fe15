package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"parish/src-server/apperr"
)

// Upload is one received file, consumed once per request and never modified.
type Upload interface {
	// OK is false when the transfer itself failed, Err says why.
	OK() bool
	Err() error
	Name() string
	Size() int64
	Open() (io.ReadSeekCloser, error)
}

type multipartUpload struct {
	header *multipart.FileHeader
	err    error
}

// FromRequest reads the form file field, a missing or oversized file still
// returns an Upload whose OK is false.
func FromRequest(r *http.Request, field string, maxBytes int64) Upload {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return &multipartUpload{err: fmt.Errorf("can't parse form: %w", err)}
	}
	_, header, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return &multipartUpload{err: fmt.Errorf("no file in field %q", field)}
	case err != nil:
		return &multipartUpload{err: err}
	case maxBytes > 0 && header.Size > maxBytes:
		return &multipartUpload{header: header, err: fmt.Errorf("file is larger than %d bytes", maxBytes)}
	case header.Size == 0:
		return &multipartUpload{header: header, err: errors.New("file is empty")}
	}
	return &multipartUpload{header: header}
}

// HasFile tells an empty optional file field apart from a broken upload.
// A body that is not multipart carries no file, any other parse failure is
// an *apperr.UploadError.
func HasFile(r *http.Request, field string) (bool, error) {
	if r.MultipartForm == nil {
		err := r.ParseMultipartForm(32 << 20)
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			return false, nil
		case err != nil:
			return false, &apperr.UploadError{Reason: "can't parse form", Err: err}
		}
	}
	files := r.MultipartForm.File[field]
	return len(files) > 0 && files[0].Size > 0, nil
}

func (u *multipartUpload) OK() bool { return u.err == nil && u.header != nil }
func (u *multipartUpload) Err() error { return u.err }

func (u *multipartUpload) Name() string {
	if u.header == nil {
		return ""
	}
	return u.header.Filename
}

func (u *multipartUpload) Size() int64 {
	if u.header == nil {
		return 0
	}
	return u.header.Size
}

func (u *multipartUpload) Open() (io.ReadSeekCloser, error) {
	if !u.OK() {
		return nil, u.err
	}
	return u.header.Open()
}

type fileUpload struct {
	path string
	size int64
	err  error
}

// FromFile wraps a local file, used by the command line tools.
func FromFile(path string) Upload {
	stat, err := os.Stat(path)
	switch {
	case err != nil:
		return &fileUpload{path: path, err: err}
	case stat.IsDir():
		return &fileUpload{path: path, err: fmt.Errorf("%s is a directory", path)}
	}
	return &fileUpload{path: path, size: stat.Size()}
}

func (u *fileUpload) OK() bool { return u.err == nil }
func (u *fileUpload) Err() error { return u.err }
func (u *fileUpload) Name() string { return filepath.Base(u.path) }
func (u *fileUpload) Size() int64 { return u.size }
func (u *fileUpload) Open() (io.ReadSeekCloser, error) {
	if u.err != nil {
		return nil, u.err
	}
	return os.Open(u.path)
}
