package repository

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each user's list is an implicit treap: nodes carry no key, a node's
// position is the number of nodes before it in in-order traversal. Insert
// and remove at a position are a split and a merge, so renumbering the tail
// costs O(log n) instead of touching every shifted row.

// treap node
type node struct {
	itemID    string
	sentiment model.Sentiment
	affinity  model.Affinity
	rankedAt  time.Time

	prio   uint64
	left   *node
	right  *node
	parent *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

// fix recomputes n.size and re-links its children to n.
func fix(n *node) {
	if n == nil {
		return
	}
	n.size = 1 + nsize(n.left) + nsize(n.right)
	if n.left != nil {
		n.left.parent = n
	}
	if n.right != nil {
		n.right.parent = n
	}
}

// split returns the first k nodes of t and the rest.
func split(t *node, k int) (*node, *node) {
	if t == nil {
		return nil, nil
	}
	if nsize(t.left) < k {
		l, r := split(t.right, k-nsize(t.left)-1)
		t.right = l
		fix(t)
		return t, r
	}
	l, r := split(t.left, k)
	t.left = r
	fix(t)
	return l, t
}

// merge concatenates a and b; every node of a precedes every node of b.
func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.prio > b.prio {
		a.right = merge(a.right, b)
		fix(a)
		return a
	}
	b.left = merge(a, b.left)
	fix(b)
	return b
}

// position walks from n to the root counting the nodes before n.
func position(n *node) int {
	pos := nsize(n.left) + 1
	for cur := n; cur.parent != nil; cur = cur.parent {
		if cur.parent.right == cur {
			pos += nsize(cur.parent.left) + 1
		}
	}
	return pos
}

func collect(n *node, userID string, out *[]model.RankedItem) {
	if n == nil {
		return
	}
	collect(n.left, userID, out)
	*out = append(*out, n.toItem(userID, len(*out)+1))
	collect(n.right, userID, out)
}

func (n *node) toItem(userID string, pos int) model.RankedItem {
	return model.RankedItem{
		UserID:    userID,
		ItemID:    n.itemID,
		Position:  pos,
		Sentiment: n.sentiment,
		Affinity:  n.affinity,
		RankedAt:  n.rankedAt,
	}
}

// userList is one user's partition.
type userList struct {
	root   *node
	byItem map[string]*node
}

func (l *userList) setRoot(r *node) {
	if r != nil {
		r.parent = nil
	}
	l.root = r
}

// TreapStore keeps every list in memory behind a single RWMutex.
type TreapStore struct {
	mu    sync.RWMutex
	users map[string]*userList
	items int
	now   func() time.Time

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		users:                 make(map[string]*userList),
		now:                   time.Now,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *TreapStore) Ping(ctx context.Context) error { return nil }

// InsertAt implements Store.InsertAt in O(log n) expected time.
func (s *TreapStore) InsertAt(ctx context.Context, userID, itemID string, pos int, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opInsertAt, start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.users[userID]
	if l == nil {
		l = &userList{byItem: make(map[string]*node)}
	}
	if _, ok := l.byItem[itemID]; ok {
		return model.RankedItem{}, alreadyRanked(userID, itemID)
	}
	n := nsize(l.root)
	if pos < 1 || pos > n+1 {
		return model.RankedItem{}, invalidPosition(pos, n)
	}

	nd := &node{
		itemID:    itemID,
		sentiment: meta.Sentiment,
		affinity:  meta.Affinity,
		rankedAt:  s.now().UTC(),
		prio:      rand.Uint64(), //nolint:gosec // treap balance only
		size:      1,
	}
	before, after := split(l.root, pos-1)
	l.setRoot(merge(merge(before, nd), after))
	l.byItem[itemID] = nd
	s.users[userID] = l
	s.items++

	metrics.RecordRankingInserted()
	return nd.toItem(userID, pos), nil
}

// RemoveAt implements Store.RemoveAt in O(log n) expected time.
func (s *TreapStore) RemoveAt(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opRemoveAt, start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.users[userID]
	if l == nil {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	nd, ok := l.byItem[itemID]
	if !ok {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	pos := position(nd)
	removed := nd.toItem(userID, pos)

	before, rest := split(l.root, pos-1)
	_, after := split(rest, 1)
	l.setRoot(merge(before, after))
	delete(l.byItem, itemID)
	if len(l.byItem) == 0 {
		delete(s.users, userID)
	}
	s.items--

	metrics.RecordRankingRemoved()
	return removed, nil
}

// SetMeta implements Store.SetMeta.
func (s *TreapStore) SetMeta(ctx context.Context, userID, itemID string, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opSetMeta, start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	nd, ok := s.lookup(userID, itemID)
	if !ok {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	nd.sentiment = meta.Sentiment
	nd.affinity = meta.Affinity

	metrics.RecordMetadataUpdate()
	return nd.toItem(userID, position(nd)), nil
}

// List implements Store.List.
func (s *TreapStore) List(ctx context.Context, userID string) ([]model.RankedItem, error) {
	start := time.Now()
	defer observe(opList, start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	l := s.users[userID]
	if l == nil {
		return []model.RankedItem{}, nil
	}
	out := make([]model.RankedItem, 0, nsize(l.root))
	collect(l.root, userID, &out)
	return out, nil
}

// Get implements Store.Get in O(log n).
func (s *TreapStore) Get(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opGet, start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	nd, ok := s.lookup(userID, itemID)
	if !ok {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	return nd.toItem(userID, position(nd)), nil
}

// Count implements Store.Count in O(1).
func (s *TreapStore) Count(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l := s.users[userID]; l != nil {
		return nsize(l.root), nil
	}
	return 0, nil
}

// Users implements Store.Users.
func (s *TreapStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// Totals implements Store.Totals.
func (s *TreapStore) Totals(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), s.items, nil
}

func (s *TreapStore) lookup(userID, itemID string) (*node, bool) {
	l := s.users[userID]
	if l == nil {
		return nil, false
	}
	nd, ok := l.byItem[itemID]
	return nd, ok
}

// startMetricsUpdater starts a background goroutine that refreshes store gauges.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				users, items, _ := s.Totals(ctx)
				metrics.UpdateRankedUsers(users)
				metrics.UpdateRankedItems(items)
			}
		}
	}()
}
