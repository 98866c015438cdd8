package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/gridflow/pkg/cache"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/httputil"
	"github.com/matzehuels/gridflow/pkg/observability"
)

// maxImageBytes bounds how much of a remote image is read; image headers
// are at the start of the file.
const maxImageBytes = 8 << 20

// FetchOptions configures a FetchSource.
type FetchOptions struct {
	Client  *http.Client
	Cache   cache.Cache
	Keyer   cache.Keyer
	TTL     time.Duration
	BaseDir string
	Logger  *log.Logger

	// RemoteOnly rejects srcs that would be read from the local filesystem.
	RemoteOnly bool

	// Attempts and Backoff configure retries of transient HTTP failures.
	Attempts int
	Backoff  time.Duration
}

// FetchSource resolves image sizes by fetching and decoding their src:
// http(s) URLs, data: URIs, and paths relative to BaseDir. Each src is
// fetched once; concurrent requests share one fetch and decoded sizes are
// memoised in a cache.
type FetchSource struct {
	opts   FetchOptions
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu       sync.Mutex
	entries  map[string]*fetchEntry
	inflight sync.WaitGroup
}

type fetchEntry struct {
	state    ImageState
	size     dom.Size
	watchers map[int]func(ImageState)
	seq      int
}

type mediaSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewFetchSource creates a FetchSource. Background fetches stop when ctx
// is cancelled or Close is called.
func NewFetchSource(ctx context.Context, opts FetchOptions) *FetchSource {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(ctx)
	return &FetchSource{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]*fetchEntry{},
	}
}

// State implements Source. The first query for a src starts its fetch.
func (s *FetchSource) State(img *html.Node) ImageState {
	src, _ := dom.Attr(img, "src")
	if src == "" {
		return Complete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(src).state
}

func (s *FetchSource) entryLocked(src string) *fetchEntry {
	if e, ok := s.entries[src]; ok {
		return e
	}
	e := &fetchEntry{state: Pending, watchers: map[int]func(ImageState){}}
	s.entries[src] = e
	s.inflight.Add(1)
	go s.resolve(src)
	return e
}

// Watch implements Source.
func (s *FetchSource) Watch(img *html.Node, fn func(ImageState)) func() {
	src, _ := dom.Attr(img, "src")
	if src == "" {
		fn(Complete)
		return func() {}
	}

	s.mu.Lock()
	e := s.entryLocked(src)
	if e.state != Pending {
		st := e.state
		s.mu.Unlock()
		fn(st)
		return func() {}
	}
	e.seq++
	id := e.seq
	e.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(e.watchers, id)
	}
}

// NaturalSize implements dom.MediaSizer.
func (s *FetchSource) NaturalSize(img *html.Node) (dom.Size, bool) {
	src, _ := dom.Attr(img, "src")
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[src]
	if !ok || e.state != Complete {
		return dom.Size{}, false
	}
	return e.size, true
}

// Wait blocks until every started fetch has settled or ctx is done.
func (s *FetchSource) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding fetches.
func (s *FetchSource) Close() error {
	s.cancel()
	return nil
}

func (s *FetchSource) resolve(src string) {
	defer s.inflight.Done()

	v, err, _ := s.group.Do(src, func() (any, error) {
		return s.lookup(src)
	})

	s.mu.Lock()
	e := s.entries[src]
	if err != nil {
		e.state = Failed
		s.opts.Logger.Warn("image unavailable", "src", src, "err", err)
	} else {
		ms := v.(mediaSize)
		e.state = Complete
		e.size = dom.Size{Width: float64(ms.Width), Height: float64(ms.Height)}
	}
	watchers := e.watchers
	e.watchers = map[int]func(ImageState){}
	st := e.state
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
}

func (s *FetchSource) lookup(src string) (mediaSize, error) {
	ctx := s.ctx
	key := s.opts.Keyer.MediaKey(src)

	if data, hit, err := s.opts.Cache.Get(ctx, key); err == nil && hit {
		var ms mediaSize
		if json.Unmarshal(data, &ms) == nil {
			observability.Cache().OnCacheHit(ctx, "media")
			return ms, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "media")

	raw, err := s.read(ctx, src)
	if err != nil {
		return mediaSize{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return mediaSize{}, errors.Wrap(errors.ErrCodeContent, err, "decode %s", src)
	}
	ms := mediaSize{Width: cfg.Width, Height: cfg.Height}

	if data, err := json.Marshal(ms); err == nil {
		if err := s.opts.Cache.Set(ctx, key, data, s.opts.TTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "media", len(data))
		}
	}
	return ms, nil
}

func (s *FetchSource) read(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURI(src)
	}

	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		var body []byte
		err := httputil.Retry(ctx, s.opts.Attempts, s.opts.Backoff, func() error {
			var err error
			body, err = httputil.Fetch(ctx, s.opts.Client, src, maxImageBytes)
			return err
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", src)
		}
		return body, nil
	}

	if s.opts.RemoteOnly {
		return nil, errors.New(errors.ErrCodeContent, "local image %s not allowed", src)
	}
	path := src
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.opts.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "image %s", src)
	}
	return data, err
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New(errors.ErrCodeContent, "malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeContent, err, "malformed data uri")
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeContent, err, "malformed data uri")
	}
	return []byte(s), nil
}

var (
	_ Source         = (*FetchSource)(nil)
	_ dom.MediaSizer = (*FetchSource)(nil)
)
