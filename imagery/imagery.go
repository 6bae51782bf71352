// Package imagery downloads saved photos and makes JPEG thumbnails of them.
package imagery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nfnt/resize"
	"github.com/robertmeta/rover-cli/model"
)

const (
	// DefaultThumbSize bounds both thumbnail dimensions.
	DefaultThumbSize = 300

	// DefaultQuality is the JPEG quality of thumbnails.
	DefaultQuality = 85

	// maxImageBytes bounds a single download.
	maxImageBytes = 32 << 20
)

// ErrNoSource indicates a photo without an image URL.
var ErrNoSource = errors.New("photo has no image source")

// Downloader fetches photo images into a directory.
type Downloader struct {
	dir       string
	client    *http.Client
	timeout   time.Duration
	thumbSize uint
	quality   int
	logger    *log.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithTimeout bounds each download.
func WithTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithThumbSize sets the thumbnail bounding box.
func WithThumbSize(px uint) Option {
	return func(d *Downloader) {
		if px > 0 {
			d.thumbSize = px
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Downloader writing under dir.
func New(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		dir:       dir,
		client:    &http.Client{},
		timeout:   30 * time.Second,
		thumbSize: DefaultThumbSize,
		quality:   DefaultQuality,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result describes the files written for one photo.
type Result struct {
	ID        int64  `json:"id"`
	Path      string `json:"path,omitempty"`
	Thumbnail string `json:"thumbnail"`
	Bytes     int    `json:"bytes"`
}

// Fetch downloads the full-size image of photo.
func (d *Downloader) Fetch(ctx context.Context, photo model.Photo) ([]byte, error) {
	if photo.ImgSrc == "" {
		return nil, fmt.Errorf("photo %d: %w", photo.ID, ErrNoSource)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, secure(photo.ImgSrc), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo %d: %w", photo.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download photo %d: HTTP %d", photo.ID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %d: %w", photo.ID, err)
	}
	return data, nil
}

// Save downloads photo and writes the full image, unless thumbOnly is set,
// and its thumbnail under <dir>/<rover>/.
func (d *Downloader) Save(ctx context.Context, photo model.Photo, thumbOnly bool) (Result, error) {
	data, err := d.Fetch(ctx, photo)
	if err != nil {
		return Result{}, err
	}

	thumb, err := Thumbnail(data, d.thumbSize, d.quality)
	if err != nil {
		return Result{}, fmt.Errorf("photo %d: %w", photo.ID, err)
	}

	dir := filepath.Join(d.dir, roverDir(photo))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create image directory: %w", err)
	}

	id := strconv.FormatInt(photo.ID, 10)
	res := Result{ID: photo.ID, Bytes: len(data)}

	if !thumbOnly {
		res.Path = filepath.Join(dir, id+extension(photo.ImgSrc))
		if err := os.WriteFile(res.Path, data, 0644); err != nil {
			return Result{}, fmt.Errorf("failed to write photo %d: %w", photo.ID, err)
		}
	}

	res.Thumbnail = filepath.Join(dir, id+"_thumb.jpg")
	if err := os.WriteFile(res.Thumbnail, thumb, 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write thumbnail %d: %w", photo.ID, err)
	}

	d.logger.Info("photo saved to disk", "id", photo.ID, "dir", dir, "bytes", len(data))
	return res, nil
}

// Thumbnail decodes a JPEG, PNG or GIF image and re-encodes it as a JPEG
// no larger than size x size, keeping the aspect ratio.
func Thumbnail(data []byte, size uint, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := resize.Thumbnail(size, size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// secure upgrades plain http archive links to https.
func secure(src string) string {
	if strings.HasPrefix(src, "http://mars.") {
		return "https://" + strings.TrimPrefix(src, "http://")
	}
	return src
}

// roverDir names the per-rover subdirectory. Names that could leave the
// download directory fall back to "unknown".
func roverDir(p model.Photo) string {
	name := strings.ToLower(strings.TrimSpace(p.Rover.Name))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "unknown"
	}
	return name
}

func extension(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	ext := strings.ToLower(filepath.Ext(src))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return ext
	}
	return ".jpg"
}
