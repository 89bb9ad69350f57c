package models

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // decoders for embedded images
	_ "image/png"
	"strconv"
	"sync"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"github.com/taigrr/lumen/pkg/gpu"
)

// ObjectURLs stores blobs under temporary URLs, the way a browser hands out
// object URLs for in-memory data. Revoke frees the blob.
type ObjectURLs interface {
	Create(data []byte, mimeType string) string
	Fetch(url string) ([]byte, error)
	Revoke(url string)
}

// MemoryURLs is an in-process ObjectURLs. It is safe for concurrent use.
type MemoryURLs struct {
	mu    sync.Mutex
	next  int
	blobs map[string][]byte
}

// NewMemoryURLs creates an empty store.
func NewMemoryURLs() *MemoryURLs {
	return &MemoryURLs{blobs: make(map[string][]byte)}
}

func (m *MemoryURLs) Create(data []byte, mimeType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	url := "mem:" + strconv.Itoa(m.next)
	m.blobs[url] = data
	return url
}

func (m *MemoryURLs) Fetch(url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[url]
	if !ok {
		return nil, fmt.Errorf("object url %s: not found", url)
	}
	return data, nil
}

func (m *MemoryURLs) Revoke(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, url)
}

// Len returns the number of live URLs.
func (m *MemoryURLs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// ImageHandle is an image registered under an object URL and decoded in the
// background. The URL is revoked exactly once, when decoding finishes or
// fails, or on Release if that comes first.
type ImageHandle struct {
	Index    int
	Name     string
	MimeType string
	URL      string

	urls     ObjectURLs
	revoke   sync.Once
	textures []*gpu.Texture

	// written by the decoder, read after Poll
	img  image.Image
	err  error
	done bool
}

func newImageHandle(i int, name, mimeType string, data []byte, urls ObjectURLs) *ImageHandle {
	return &ImageHandle{
		Index:    i,
		Name:     name,
		MimeType: mimeType,
		URL:      urls.Create(data, mimeType),
		urls:     urls,
	}
}

// Release revokes the URL. Further calls do nothing.
func (h *ImageHandle) Release() {
	h.revoke.Do(func() { h.urls.Revoke(h.URL) })
}

// Bind makes t receive the decoded pixels. A texture bound after the image
// finished loading is filled immediately.
func (h *ImageHandle) Bind(t *gpu.Texture) {
	h.textures = append(h.textures, t)
	if h.done && h.img != nil {
		t.SetImage(h.img)
	}
}

// Done reports whether Poll has delivered the result.
func (h *ImageHandle) Done() bool { return h.done }

// Image returns the decoded image, nil until done or on error.
func (h *ImageHandle) Image() image.Image { return h.img }

// Err returns the decode error, if any.
func (h *ImageHandle) Err() error { return h.err }

type decoded struct {
	handle *ImageHandle
	img    image.Image
	err    error
}

// ImageLoader decodes images on background goroutines, at most a fixed
// number at a time. Results are held until Poll, which must run on the
// render goroutine.
type ImageLoader struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	finished []decoded
}

// NewImageLoader creates a loader running up to concurrency decodes.
func NewImageLoader(concurrency int64) *ImageLoader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ImageLoader{sem: semaphore.NewWeighted(concurrency)}
}

// Load starts decoding h.
func (l *ImageLoader) Load(h *ImageHandle) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// Acquire only fails on a cancelled context.
		_ = l.sem.Acquire(context.Background(), 1)
		img, err := decode(h)
		l.sem.Release(1)
		h.Release()

		l.mu.Lock()
		l.finished = append(l.finished, decoded{handle: h, img: img, err: err})
		l.mu.Unlock()
	}()
}

func decode(h *ImageHandle) (image.Image, error) {
	data, err := h.urls.Fetch(h.URL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %d (%s): %w", h.Index, h.MimeType, err)
	}
	return img, nil
}

// Wait blocks until every started decode has finished. Results still need
// a Poll.
func (l *ImageLoader) Wait() {
	l.wg.Wait()
}

// Poll applies finished decodes: bound textures receive their pixels and a
// new version. It returns the number of handles completed.
func (l *ImageLoader) Poll() int {
	l.mu.Lock()
	finished := l.finished
	l.finished = nil
	l.mu.Unlock()

	for _, d := range finished {
		h := d.handle
		h.img, h.err, h.done = d.img, d.err, true
		if d.err != nil {
			Logger().Warn("image decode failed", "image", h.Index, "name", h.Name, "err", d.err)
			continue
		}
		for _, t := range h.textures {
			t.SetImage(d.img)
		}
	}
	return len(finished)
}
