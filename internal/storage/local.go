package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/leadfunnel/internal/domain"
)

// LocalURLPrefix is where the API serves local bucket objects.
const LocalURLPrefix = "/files"

// LocalBucket stores the downloads as files in one directory.
type LocalBucket struct {
	dir           string
	publicBaseURL string
}

// NewLocalBucket creates dir if needed.
func NewLocalBucket(dir, publicBaseURL string) (*LocalBucket, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalBucket{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (b *LocalBucket) List(_ context.Context) ([]domain.StoredFile, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("reading storage directory: %w", err)
	}
	out := []domain.StoredFile{}
	for _, e := range entries {
		if e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed while listing
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, domain.StoredFile{
			Name:        e.Name(),
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(filepath.Ext(e.Name())),
			CreatedAt:   info.ModTime(),
		})
	}
	return out, nil
}

// Upload writes body to a new file. An existing name is never overwritten.
func (b *LocalBucket) Upload(_ context.Context, name string, body io.Reader, size int64, contentType string) (domain.StoredFile, error) {
	if !ValidName(name) {
		return domain.StoredFile{}, ErrInvalidName
	}
	path := filepath.Join(b.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		return domain.StoredFile{}, ErrExists
	}
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("creating %s: %w", name, err)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && size > 0 && n != size {
		err = fmt.Errorf("short write: %d of %d bytes", n, size)
	}
	if err != nil {
		os.Remove(path)
		return domain.StoredFile{}, fmt.Errorf("writing %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return domain.StoredFile{
		Name:        name,
		Size:        n,
		ContentType: contentType,
		CreatedAt:   info.ModTime(),
	}, nil
}

func (b *LocalBucket) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(b.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

func (b *LocalBucket) PublicURL(_ context.Context, name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	if _, err := os.Stat(filepath.Join(b.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return b.publicBaseURL + "/" + url.PathEscape(name), nil
}

func (b *LocalBucket) Ping(_ context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.dir)
	}
	return nil
}

// Handler serves the bucket's files. Mount it under LocalURLPrefix.
func (b *LocalBucket) Handler() http.Handler {
	return http.StripPrefix(LocalURLPrefix+"/", http.FileServer(noListing{http.Dir(b.dir)}))
}

// noListing hides directory indexes from http.FileServer.
type noListing struct{ fs http.FileSystem }

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
