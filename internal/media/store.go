// Package media keeps uploaded files on the local filesystem under a
// media root and hands out the URL they are served from.
package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotImage is returned when an upload does not look like an image.
var ErrNotImage = errors.New("upload a valid image")

const busImageDir = "uploads/buses"

// LocalStore writes files below Root.  The returned references are
// BaseURL joined with the path relative to Root, which is where the
// router serves Root from.
type LocalStore struct {
	Root    string
	BaseURL string
}

// NewLocalStore returns a store rooted at root, serving under baseURL.
func NewLocalStore(root, baseURL string) *LocalStore {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStore{Root: root, BaseURL: baseURL}
}

// SaveBusImage stores r as uploads/buses/<slug(busInfo)>-<uuid><ext>.
// The content is sniffed and anything not detected as an image is
// rejected with ErrNotImage before a file is created.
func (s *LocalStore) SaveBusImage(ctx context.Context, busInfo, filename string, r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", err
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", ErrNotImage
	}

	name := BusImageName(busInfo, filename)
	rel := path.Join(busImageDir, name)
	dst := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, readerWithContext{ctx, br}); err != nil {
		f.Close()
		os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return s.BaseURL + rel, nil
}

// BusImageName builds a unique file name that keeps the original
// extension and starts with a slug of the bus description.
func BusImageName(busInfo, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	slug := Slugify(busInfo)
	if slug == "" {
		slug = "bus"
	}
	return fmt.Sprintf("%s-%s%s", slug, uuid.NewString(), ext)
}

// Slugify lower-cases s and collapses every run of characters other
// than letters and digits into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
