package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// MemoryStore is an in-memory feedtypes.ObjectStore. Listings are returned in
// lexical key order, the way S3 returns them. Failures can be injected per key.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	listErr  error
	getErrs  map[string]error
	openErrs map[string][]error
	readErrs map[string]error
	opens    map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		getErrs:  make(map[string]error),
		openErrs: make(map[string][]error),
		readErrs: make(map[string]error),
		opens:    make(map[string]int),
	}
}

// Put stores data under key.
func (m *MemoryStore) Put(key string, data []byte) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m
}

// PutString stores s under key.
func (m *MemoryStore) PutString(key, s string) *MemoryStore {
	return m.Put(key, []byte(s))
}

// FailList makes every List call return err.
func (m *MemoryStore) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailGet makes Get of key return err.
func (m *MemoryStore) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErrs[key] = err
}

// FailOpen queues errs to be returned by successive Open calls for key.
// Once the queue is drained Open succeeds.
func (m *MemoryStore) FailOpen(key string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs[key] = append(m.openErrs[key], errs...)
}

// FailRead makes the stream of key return err after its full contents
// instead of io.EOF.
func (m *MemoryStore) FailRead(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs[key] = err
}

// Opens returns how many times Open was called for key.
func (m *MemoryStore) Opens(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[key]
}

// List implements feedtypes.ObjectStore.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]feedtypes.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []feedtypes.ObjectInfo
	for key, data := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, feedtypes.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			LastModified: time.Unix(0, 0).UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get implements feedtypes.ObjectStore.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.getErrs[key]; err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ferrors.ErrObjectNotFound, key)
	}
	return bytes.Clone(data), nil
}

// Open implements feedtypes.ObjectStore.
func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens[key]++
	if queue := m.openErrs[key]; len(queue) > 0 {
		m.openErrs[key] = queue[1:]
		return nil, queue[0]
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ferrors.ErrObjectNotFound, key)
	}

	var r io.Reader = bytes.NewReader(bytes.Clone(data))
	if err := m.readErrs[key]; err != nil {
		r = io.MultiReader(r, &errReader{err: err})
	}
	return io.NopCloser(r), nil
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}

var _ feedtypes.ObjectStore = (*MemoryStore)(nil)
