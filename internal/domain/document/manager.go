// Package document owns one syntax tree per tracked file.
//
// Trees are cached by file ID and content hash: a request whose content hashes
// the same as the last parse gets the cached tree and the grammar is not
// invoked. Trees are reference counted. Replacing or evicting a document only
// drops the document's own reference, so a tree stays alive until the last
// reader releases its Handle.
package document

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/corey/symdex/internal/ports"
)

// ErrNilTree is returned when a grammar reports success but yields no tree.
var ErrNilTree = errors.New("grammar returned no tree")

// Config bounds the cache. Zero values mean unbounded.
type Config struct {
	MaxDocuments int
	MaxBytes     int64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Documents int
	Bytes     int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HashContent returns the hex xxh3-128 digest used as the cache key.
func HashContent(content []byte) string {
	h := xxh3.Hash128(content).Bytes()
	return fmt.Sprintf("%x", h[:])
}

// sharedTree is a reference-counted syntax tree.
type sharedTree struct {
	tree ports.SyntaxTree
	refs atomic.Int32
}

func newSharedTree(t ports.SyntaxTree) *sharedTree {
	s := &sharedTree{tree: t}
	s.refs.Store(1)
	return s
}

func (s *sharedTree) acquire() { s.refs.Add(1) }

func (s *sharedTree) release() {
	if s.refs.Add(-1) == 0 {
		s.tree.Close()
	}
}

// document is the per-file cache slot. mu serializes parses of the same file.
type document struct {
	mu       sync.Mutex
	fileID   string
	language string
	grammar  string
	hash     string
	revision uint64
	hasErrs  bool
	tree     *sharedTree
	evicted  bool

	// Guarded by Manager.mu.
	size int64
	elem *list.Element
}

// Handle is a borrowed, read-only reference to a document's tree.
// Release must be called exactly once.
type Handle struct {
	tree           *sharedTree
	once           sync.Once
	FileID         string
	Language       string
	ContentHash    string
	Revision       uint64
	HasParseErrors bool
	// Cached is true when the tree was served without invoking the grammar.
	Cached bool
}

// Tree returns the borrowed tree. It is valid until Release.
func (h *Handle) Tree() ports.SyntaxTree { return h.tree.tree }

// Release drops the reference. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(h.tree.release)
}

// Manager is the Document Manager.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	docs  map[string]*document
	lru   *list.List // front = most recently used
	bytes int64

	hits, misses, evictions atomic.Uint64
}

// NewManager creates an empty manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:  cfg,
		docs: make(map[string]*document),
		lru:  list.New(),
	}
}

// GetOrReparse returns the tree for fileID, parsing only when the content or
// the grammar changed since the last parse.
func (m *Manager) GetOrReparse(fileID string, lang ports.LanguageSupport, content []byte) (*Handle, error) {
	return m.acquire(fileID, lang, content, nil)
}

// ApplyEdit is GetOrReparse with an edit hint. When the prior tree for the
// same grammar is cached the parse is incremental; otherwise it falls back to
// a full parse. Output is identical either way.
func (m *Manager) ApplyEdit(fileID string, lang ports.LanguageSupport, content []byte, edit ports.InputEdit) (*Handle, error) {
	return m.acquire(fileID, lang, content, &edit)
}

func (m *Manager) acquire(fileID string, lang ports.LanguageSupport, content []byte, edit *ports.InputEdit) (*Handle, error) {
	hash := HashContent(content)
	for {
		doc := m.touch(fileID)
		doc.mu.Lock()
		if doc.evicted {
			// Lost a race with Evict or InvalidateAll; start over with a fresh slot.
			doc.mu.Unlock()
			continue
		}
		return m.refreshLocked(doc, lang, content, hash, edit)
	}
}

// refreshLocked runs refresh and releases doc.mu even when the grammar
// panics. A slot that still has no tree afterwards is dropped so failed
// files do not occupy the cache.
func (m *Manager) refreshLocked(doc *document, lang ports.LanguageSupport, content []byte, hash string, edit *ports.InputEdit) (h *Handle, err error) {
	defer func() {
		if doc.tree == nil {
			m.discard(doc)
		}
		doc.mu.Unlock()
	}()
	return m.refresh(doc, lang, content, hash, edit)
}

// discard unlinks an empty slot. Runs with d.mu held.
func (m *Manager) discard(d *document) {
	m.mu.Lock()
	if m.docs[d.fileID] == d {
		m.removeLocked(d)
	}
	m.mu.Unlock()
	d.evicted = true
}

// refresh runs with doc.mu held.
func (m *Manager) refresh(doc *document, lang ports.LanguageSupport, content []byte, hash string, edit *ports.InputEdit) (*Handle, error) {
	sameGrammar := doc.tree != nil && doc.language == lang.Name() && doc.grammar == lang.GrammarVersion()
	if sameGrammar && doc.hash == hash {
		m.hits.Add(1)
		return doc.handle(true), nil
	}
	m.misses.Add(1)

	var previous ports.SyntaxTree
	if sameGrammar && edit != nil {
		previous = doc.tree.tree
	}
	tree, err := lang.Parse(content, previous, edit)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, ErrNilTree
	}

	old := doc.tree
	doc.tree = newSharedTree(tree)
	doc.language = lang.Name()
	doc.grammar = lang.GrammarVersion()
	doc.hash = hash
	doc.hasErrs = tree.HasErrors()
	doc.revision++
	if old != nil {
		old.release()
	}

	h := doc.handle(false)

	m.mu.Lock()
	if m.docs[doc.fileID] == doc {
		m.bytes += int64(len(content)) - doc.size
		doc.size = int64(len(content))
		m.evictLocked(doc)
	}
	m.mu.Unlock()
	return h, nil
}

// handle runs with d.mu held.
func (d *document) handle(cached bool) *Handle {
	d.tree.acquire()
	return &Handle{
		tree:           d.tree,
		FileID:         d.fileID,
		Language:       d.language,
		ContentHash:    d.hash,
		Revision:       d.revision,
		HasParseErrors: d.hasErrs,
		Cached:         cached,
	}
}

// touch returns the slot for fileID, creating it if needed, and marks it most
// recently used.
func (m *Manager) touch(fileID string) *document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[fileID]; ok {
		m.lru.MoveToFront(d.elem)
		return d
	}
	d := &document{fileID: fileID}
	d.elem = m.lru.PushFront(d)
	m.docs[fileID] = d
	return d
}

// evictLocked trims least-recently-used documents until the cache is within
// its bounds. keep is never evicted. Documents that are busy reparsing are
// skipped. Runs with m.mu held.
func (m *Manager) evictLocked(keep *document) {
	over := func() bool {
		return (m.cfg.MaxDocuments > 0 && len(m.docs) > m.cfg.MaxDocuments) ||
			(m.cfg.MaxBytes > 0 && m.bytes > m.cfg.MaxBytes)
	}
	for e := m.lru.Back(); e != nil && over(); {
		prev := e.Prev()
		d := e.Value.(*document)
		if d != keep && d.mu.TryLock() {
			m.removeLocked(d)
			d.drop()
			d.mu.Unlock()
			m.evictions.Add(1)
		}
		e = prev
	}
}

// removeLocked unlinks d from the index. Runs with m.mu held.
func (m *Manager) removeLocked(d *document) {
	delete(m.docs, d.fileID)
	m.lru.Remove(d.elem)
	m.bytes -= d.size
	d.size = 0
}

// drop releases the document's own tree reference. Runs with d.mu held.
func (d *document) drop() {
	d.evicted = true
	if d.tree != nil {
		d.tree.release()
		d.tree = nil
	}
}

// Evict forgets fileID. In-flight readers keep their trees until they
// release them. Evicting an unknown file is a no-op.
func (m *Manager) Evict(fileID string) {
	m.mu.Lock()
	d, ok := m.docs[fileID]
	if ok {
		m.removeLocked(d)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	d.mu.Lock()
	d.drop()
	d.mu.Unlock()
}

// InvalidateAll evicts every document.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	docs := make([]*document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	for _, d := range docs {
		d.size = 0
	}
	m.docs = make(map[string]*document)
	m.lru.Init()
	m.bytes = 0
	m.mu.Unlock()

	for _, d := range docs {
		d.mu.Lock()
		d.drop()
		d.mu.Unlock()
	}
}

// Len returns the number of tracked documents.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Stats returns cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Documents: len(m.docs),
		Bytes:     m.bytes,
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
	}
}
