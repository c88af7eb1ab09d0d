// Package imagesource provides frame sources for the odometry engine.
package imagesource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	// register image formats.
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

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	"github.com/samber/lo"
	_ "golang.org/x/image/bmp"  // register bmp
	_ "golang.org/x/image/tiff" // register tiff
)

// ImageSource produces frames. The release function must be called once the caller is done with
// the image. Next returns io.EOF when the source is exhausted.
type ImageSource interface {
	Next(ctx context.Context) (image.Image, func(), error)
	Close() error
}

// StaticSource always returns the same image.
type StaticSource struct {
	Img image.Image
}

// Next returns the stored image.
func (ss *StaticSource) Next(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return ss.Img, func() {}, nil
}

// Close does nothing.
func (ss *StaticSource) Close() error {
	return nil
}

// imageExtensions are the file types a DirSource reads.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".ppm", ".bmp", ".tif", ".tiff"}

// DirSource returns the images of a directory in lexical file name order.
type DirSource struct {
	files  []string
	loop   bool
	width  int
	height int

	mu   sync.Mutex
	next int
}

// DirSourceOption configures a DirSource.
type DirSourceOption func(*DirSource)

// WithLoop restarts from the first file after the last one.
func WithLoop() DirSourceOption {
	return func(ds *DirSource) {
		ds.loop = true
	}
}

// WithResize resizes every image to width x height.
func WithResize(width, height int) DirSourceOption {
	return func(ds *DirSource) {
		ds.width = width
		ds.height = height
	}
}

// NewDirSource lists the image files of dir.
func NewDirSource(dir string, opts ...DirSourceOption) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		return filepath.Join(dir, entry.Name()), !entry.IsDir() && lo.Contains(imageExtensions, ext)
	})
	if len(files) == 0 {
		return nil, errors.Errorf("no images found in %q", dir)
	}
	sort.Strings(files)
	ds := &DirSource{files: files}
	for _, opt := range opts {
		opt(ds)
	}
	return ds, nil
}

// Len returns the number of images in the directory.
func (ds *DirSource) Len() int {
	return len(ds.files)
}

// Next decodes the next file.
func (ds *DirSource) Next(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ds.mu.Lock()
	if ds.next >= len(ds.files) {
		if !ds.loop {
			ds.mu.Unlock()
			return nil, nil, io.EOF
		}
		ds.next = 0
	}
	fn := ds.files[ds.next]
	ds.next++
	ds.mu.Unlock()

	img, err := imaging.Open(fn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot decode %q", fn)
	}
	return ds.resize(img), func() {}, nil
}

func (ds *DirSource) resize(img image.Image) image.Image {
	if ds.width <= 0 || ds.height <= 0 {
		return img
	}
	if size := img.Bounds().Size(); size.X == ds.width && size.Y == ds.height {
		return img
	}
	return imaging.Resize(img, ds.width, ds.height, imaging.Linear)
}

// Close does nothing.
func (ds *DirSource) Close() error {
	return nil
}

// HTTPSource fetches a JPEG or PNG snapshot from a URL on every call.
type HTTPSource struct {
	client http.Client
	URL    string
}

// DefaultHTTPTimeout bounds a single snapshot request of an HTTPSource.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPTimeout replaces DefaultHTTPTimeout. Zero means no timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPSourceOption {
	return func(hs *HTTPSource) {
		hs.client.Timeout = timeout
	}
}

// NewHTTPSource returns a source reading snapshots from url.
func NewHTTPSource(url string, opts ...HTTPSourceOption) *HTTPSource {
	hs := &HTTPSource{URL: url}
	hs.client.Timeout = DefaultHTTPTimeout
	for _, opt := range opts {
		opt(hs)
	}
	return hs
}

func readyBytesFromURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Next fetches and decodes one snapshot.
func (hs *HTTPSource) Next(ctx context.Context) (image.Image, func(), error) {
	data, err := readyBytesFromURL(ctx, &hs.client, hs.URL)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "couldn't read url %q", hs.URL)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return img, func() {}, nil
}

// Close drops idle connections.
func (hs *HTTPSource) Close() error {
	hs.client.CloseIdleConnections()
	return nil
}
