// Package capture provides frame sources for the kiosk loop.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnavailable is returned when a source has no frame to give this cycle.
var ErrUnavailable = errors.New("frame unavailable")

// Source produces frames on demand.
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
}

// Decode decodes any of the registered image formats.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// HTTPSource fetches a still image per frame from a camera snapshot URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source reading from url.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Frame downloads and decodes the current snapshot. Transport and decode
// failures are reported as ErrUnavailable so the loop can carry on.
func (s *HTTPSource) Frame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera returned status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return img, nil
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// DirSource replays the images of a directory in name order, looping forever.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource lists the images in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrUnavailable, dir)
	}
	sort.Strings(files)

	return &DirSource{files: files}, nil
}

// Len returns the number of images being replayed.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Frame returns the next image of the directory.
func (s *DirSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, filepath.Base(path), err)
	}
	return img, nil
}
