package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// fakeRenderer serves listing pages from memory and records every call.
type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[int][]string
	failures map[int]int // remaining failures per page; -1 fails forever
	hooks    map[int]func()
	calls    map[int]int
}

func newFakeRenderer(pages map[int][]string) *fakeRenderer {
	return &fakeRenderer{
		pages:    pages,
		failures: map[int]int{},
		hooks:    map[int]func(){},
		calls:    map[int]int{},
	}
}

func (f *fakeRenderer) ListPage(ctx context.Context, page int) ([]string, error) {
	f.mu.Lock()
	f.calls[page]++
	hook := f.hooks[page]
	remaining := f.failures[page]
	if remaining > 0 {
		f.failures[page] = remaining - 1
	}
	ids := append([]string(nil), f.pages[page]...)
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if remaining != 0 {
		return nil, fmt.Errorf("render page %d: %w", page, errors.New("navigation failed"))
	}
	return ids, nil
}

func (f *fakeRenderer) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

func (f *fakeRenderer) fetchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.calls))
	for page := range f.calls {
		out = append(out, page)
	}
	return out
}

// fakeFetcher serves bodies keyed by URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string]string{},
		errs:   map[string]error{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return FetchResponse{}, err
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return FetchResponse{}, fmt.Errorf("unexpected url %s", rawURL)
	}
	return FetchResponse{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

// memoryBlobStore keeps written objects in memory.
type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (m *memoryBlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = buf.Bytes()
	return "memory://" + path, nil
}

func (m *memoryBlobStore) get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	return data, ok
}

// memorySnapshotStore keeps the last saved snapshot.
type memorySnapshotStore struct {
	mu      sync.Mutex
	records []Record
	saved   bool
	saveErr error
}

func (m *memorySnapshotStore) Save(_ context.Context, records []Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]Record(nil), records...)
	m.saved = true
	return nil
}

func (m *memorySnapshotStore) Load(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, errors.New("no snapshot")
	}
	return append([]Record(nil), m.records...), nil
}

func (m *memorySnapshotStore) Path() string {
	return "memory://carts.json"
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

func detailHTML(title, asset, favorites string) string {
	var b bytes.Buffer
	b.WriteString("<html><body>")
	if title != "" {
		fmt.Fprintf(&b, `<div class="post_title2">%s</div>`, title)
	}
	if asset != "" {
		fmt.Fprintf(&b, `<a title="Open Cartridge File" href="%s">Cart</a>`, asset)
	}
	fmt.Fprintf(&b, `<div class="stars"><div title="Give this post a star"></div><div>%s</div></div>`, favorites)
	b.WriteString("</body></html>")
	return b.String()
}
