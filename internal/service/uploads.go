package service

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMaxUploadMB = 10

type uploadedImage struct {
	name    string
	payload []byte
	mime    string
}

// readImage loads a multipart image into memory, enforcing size and type.
func readImage(file *multipart.FileHeader, maxBytes int64, field string) (uploadedImage, error) {
	if file == nil {
		return uploadedImage{}, newError(KindInvalidPhoto, field+" is required", FieldError{Index: -1, Field: field, Message: "required"})
	}
	if file.Size > maxBytes {
		return uploadedImage{}, newError(KindInvalidPhoto, field+" exceeds maximum allowed size", FieldError{Index: -1, Field: field, Message: "too large"})
	}

	handle, err := file.Open()
	if err != nil {
		return uploadedImage{}, fmt.Errorf("open %s: %w", field, err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxBytes+1)); err != nil {
		return uploadedImage{}, fmt.Errorf("read %s: %w", field, err)
	}
	if int64(buf.Len()) > maxBytes {
		return uploadedImage{}, newError(KindInvalidPhoto, field+" exceeds maximum allowed size", FieldError{Index: -1, Field: field, Message: "too large"})
	}
	if buf.Len() == 0 {
		return uploadedImage{}, newError(KindInvalidPhoto, field+" is empty", FieldError{Index: -1, Field: field, Message: "empty"})
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	if !strings.HasPrefix(detected, "image/") {
		return uploadedImage{}, newError(KindInvalidPhoto, field+" must be an image", FieldError{Index: -1, Field: field, Value: detected, Message: "not an image"})
	}

	return uploadedImage{name: file.Filename, payload: buf.Bytes(), mime: detected}, nil
}

func (u uploadedImage) reader() io.Reader {
	return bytes.NewReader(u.payload)
}

func checkinPhotoName(examID, studentID uint, original string) string {
	return fmt.Sprintf("checkins/checkin_exam%d_student%d_%s", examID, studentID, sanitizeFileName(original))
}

func evidenceName(examID, studentID uint, original string) string {
	return fmt.Sprintf("evidence/violation_exam%d_student%d_%s", examID, studentID, sanitizeFileName(original))
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || ext == "." {
		ext = ".bin"
	}
	return base + ext
}

func maxUploadBytes(maxMB int) int64 {
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	return int64(maxMB) * 1024 * 1024
}
