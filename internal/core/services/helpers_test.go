package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/kbsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbsync/internal/core/domain"
)

var errInjected = errors.New("injected failure")

// faultyMetadata wraps the memory store with per-key failures.
type faultyMetadata struct {
	*memory.MetadataStore

	mu         sync.Mutex
	listErr    error
	extra      []domain.DocumentRecord
	failGet    map[domain.DocumentKey]bool
	failInsert map[domain.DocumentKey]bool
	failUpdate map[domain.DocumentKey]bool
	failDelete map[domain.DocumentKey]bool
}

func newFaultyMetadata() *faultyMetadata {
	return &faultyMetadata{
		MetadataStore: memory.NewMetadataStore(),
		failGet:       make(map[domain.DocumentKey]bool),
		failInsert:    make(map[domain.DocumentKey]bool),
		failUpdate:    make(map[domain.DocumentKey]bool),
		failDelete:    make(map[domain.DocumentKey]bool),
	}
}

func (m *faultyMetadata) ListAll(ctx context.Context) ([]domain.DocumentRecord, error) {
	m.mu.Lock()
	listErr, extra := m.listErr, m.extra
	m.mu.Unlock()
	if listErr != nil {
		return nil, listErr
	}
	if extra != nil {
		return extra, nil
	}
	return m.MetadataStore.ListAll(ctx)
}

func (m *faultyMetadata) Get(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	if m.fails(m.failGet, key) {
		return nil, errInjected
	}
	return m.MetadataStore.Get(ctx, key)
}

func (m *faultyMetadata) Insert(ctx context.Context, rec domain.DocumentRecord) error {
	if m.fails(m.failInsert, rec.Key) {
		return errInjected
	}
	return m.MetadataStore.Insert(ctx, rec)
}

func (m *faultyMetadata) Update(ctx context.Context, rec domain.DocumentRecord) error {
	if m.fails(m.failUpdate, rec.Key) {
		return errInjected
	}
	return m.MetadataStore.Update(ctx, rec)
}

func (m *faultyMetadata) Delete(ctx context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	if m.fails(m.failDelete, key) {
		return nil, errInjected
	}
	return m.MetadataStore.Delete(ctx, key)
}

func (m *faultyMetadata) fails(set map[domain.DocumentKey]bool, key domain.DocumentKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return set[key]
}

func (m *faultyMetadata) set(set map[domain.DocumentKey]bool, key domain.DocumentKey, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set[key] = fail
}

// faultyIndex wraps the memory index. Pushes fail by document name,
// removals by content id.
type faultyIndex struct {
	*memory.ContentIndex

	mu         sync.Mutex
	failPush   map[string]bool
	failRemove map[string]bool
	pushes     int
	removes    int

	delay    time.Duration
	block    bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFaultyIndex() *faultyIndex {
	return &faultyIndex{
		ContentIndex: memory.NewContentIndex(),
		failPush:     make(map[string]bool),
		failRemove:   make(map[string]bool),
	}
}

func (i *faultyIndex) Push(ctx context.Context, name string, content io.Reader) (string, error) {
	n := i.inFlight.Add(1)
	defer i.inFlight.Add(-1)
	for {
		seen := i.maxSeen.Load()
		if n <= seen || i.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	i.mu.Lock()
	i.pushes++
	fail, delay, block := i.failPush[name], i.delay, i.block
	i.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return "", errInjected
	}
	return i.ContentIndex.Push(ctx, name, content)
}

func (i *faultyIndex) Remove(ctx context.Context, contentID string) error {
	i.mu.Lock()
	i.removes++
	fail := i.failRemove[contentID]
	i.mu.Unlock()
	if fail {
		return errInjected
	}
	return i.ContentIndex.Remove(ctx, contentID)
}

func (i *faultyIndex) setFailPush(name string, fail bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failPush[name] = fail
}

func (i *faultyIndex) setFailRemove(id string, fail bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failRemove[id] = fail
}

func (i *faultyIndex) counts() (pushes, removes int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pushes, i.removes
}

// fakeCorpus serves a mutable article list.
type fakeCorpus struct {
	mu       sync.Mutex
	articles []domain.RawArticle
	err      error
	calls    int
	started  chan struct{}
	release  chan struct{}
}

func (c *fakeCorpus) FetchAll(ctx context.Context) ([]domain.RawArticle, error) {
	c.mu.Lock()
	c.calls++
	started, release := c.started, c.release
	c.mu.Unlock()

	if started != nil {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]domain.RawArticle(nil), c.articles...), nil
}

func (c *fakeCorpus) setArticles(articles ...domain.RawArticle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.articles = articles
}

// keyCanonicaliser renders "# title\n\nbody" keyed by article id.
type keyCanonicaliser struct {
	failID int64
}

func (k keyCanonicaliser) Canonicalise(_ context.Context, a *domain.RawArticle) (*domain.CanonicalDocument, error) {
	if k.failID != 0 && a.ID == k.failID {
		return nil, errInjected
	}
	key := domain.DocumentKey(strconv.FormatInt(a.ID, 10))
	return &domain.CanonicalDocument{
		Key:     key,
		Name:    docName(key),
		Title:   a.Title,
		Content: []byte(fmt.Sprintf("# %s\n\n%s", a.Title, a.Body)),
	}, nil
}

func docName(key domain.DocumentKey) string {
	return key.String() + ".md"
}

func article(id int64, body string) domain.RawArticle {
	return domain.RawArticle{ID: id, Title: fmt.Sprintf("Article %d", id), Body: body}
}

// releaseCountingStager records Release calls and can fail staging.
type releaseCountingStager struct {
	*memory.Stager
	failStage bool
}

func (s *releaseCountingStager) Stage(ctx context.Context, doc *domain.CanonicalDocument) (string, error) {
	if s.failStage {
		return "", errInjected
	}
	return s.Stager.Stage(ctx, doc)
}

// fakeLock is a RunLock that can be pre-held.
type fakeLock struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *fakeLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return domain.ErrSyncInProgress
	}
	l.held = true
	l.acquired++
	return nil
}

func (l *fakeLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

// testConfig disables throttling and fixes the clock.
func testConfig() SynchronizerConfig {
	return SynchronizerConfig{
		Concurrency: 4,
		CallTimeout: 5 * time.Second,
		Now:         func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

// tickingClock starts at the fixed test time and advances a second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
