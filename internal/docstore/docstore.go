// internal/docstore/docstore.go
//
// Shared document store: JSON-shaped documents grouped in collections.
// Responsibilities:
//   - Create/Get/Set(merge)/Update(dotted paths)/Delete by id.
//   - Field transforms applied atomically under the store lock (increment, array union).
//   - Push subscriptions to one document or to a sorted/limited collection query.
//   - Optional Rules hook (write permission) and Persister (write-through durability).
//
// Notes:
//   - Every write is a partial, independently committed update; there are no
//     multi-document transactions. Conditions guard single-document writes.
//   - Subscribers always see the latest snapshot; intermediate ones may be skipped.

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrExists          = errors.New("document already exists")
	ErrConditionFailed = errors.New("write condition failed")
)

// Doc is a decoded JSON object.
type Doc map[string]any

// Snapshot is a point-in-time copy of one document.
type Snapshot struct {
	Collection string
	ID         string
	Exists     bool
	Data       Doc
	UpdatedAt  time.Time
}

// Decode unmarshals the snapshot data into out.
func (s Snapshot) Decode(out any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Condition makes a write conditional on the current value at Path.
type Condition struct {
	Path   string
	Equals any
}

// Query selects a sorted, limited view of a collection.
type Query struct {
	OrderBy string // dotted path; empty orders by id
	Desc    bool
	Limit   int // 0 means no limit
}

type record struct {
	data    Doc
	updated time.Time
}

type docKey struct{ coll, id string }

type docSub struct {
	key docKey
	ch  chan Snapshot
}

type querySub struct {
	coll string
	q    Query
	ch   chan []Snapshot
}

// Store is an in-memory document store. The zero value is not usable; call New.
type Store struct {
	mu        sync.Mutex
	colls     map[string]map[string]*record
	docSubs   map[docKey]map[*docSub]struct{}
	querySubs map[string]map[*querySub]struct{}
	rules     Rules
	persister Persister
	now       func() time.Time
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithRules installs the write-permission hook.
func WithRules(r Rules) Option { return func(s *Store) { s.rules = r } }

// WithPersister installs write-through persistence.
func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }

// WithClock injects the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDs injects the id generator used by Create.
func WithIDs(f func() string) Option { return func(s *Store) { s.newID = f } }

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		colls:     make(map[string]map[string]*record),
		docSubs:   make(map[docKey]map[*docSub]struct{}),
		querySubs: make(map[string]map[*querySub]struct{}),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load fills the store from the persister. Existing documents are replaced.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	recs, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		var d Doc
		if err := json.Unmarshal(rec.Body, &d); err != nil {
			log.Warn().Err(err).Str("collection", rec.Collection).Str("id", rec.ID).Msg("skipping undecodable document")
			continue
		}
		s.collection(rec.Collection)[rec.ID] = &record{data: d, updated: rec.UpdatedAt}
	}
	log.Info().Int("documents", len(recs)).Msg("document store loaded")
	return nil
}

func (s *Store) collection(name string) map[string]*record {
	c, ok := s.colls[name]
	if !ok {
		c = make(map[string]*record)
		s.colls[name] = c
	}
	return c
}

// Create stores v under a generated id.
func (s *Store) Create(ctx context.Context, coll string, v any) (string, error) {
	id := s.newID()
	return id, s.Insert(ctx, coll, id, v)
}

// Insert stores v under id, failing with ErrExists if the id is taken.
func (s *Store) Insert(ctx context.Context, coll, id string, v any) error {
	d, err := toDoc(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collection(coll)[id]; ok {
		return fmt.Errorf("%s/%s: %w", coll, id, ErrExists)
	}
	if err := s.check(ctx, OpCreate, coll, id, nil, d); err != nil {
		return err
	}
	return s.commit(ctx, coll, id, d)
}

// Get returns the document or ErrNotFound.
func (s *Store) Get(ctx context.Context, coll, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(coll, id)
	if !snap.Exists {
		return snap, fmt.Errorf("%s/%s: %w", coll, id, ErrNotFound)
	}
	return snap, nil
}

// Set writes v. With merge, nested objects are merged and fields absent from
// v are left untouched; without merge the document is replaced.
func (s *Store) Set(ctx context.Context, coll, id string, v any, merge bool) error {
	d, err := toDoc(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var before Doc
	if rec, ok := s.collection(coll)[id]; ok {
		before = rec.data
	}
	if err := s.check(ctx, OpSet, coll, id, before, d); err != nil {
		return err
	}
	next := d
	if merge && before != nil {
		next = clone(before)
		mergeInto(next, d)
	}
	return s.commit(ctx, coll, id, next)
}

// Update applies field writes addressed by dotted path to an existing
// document. Values may be transforms (Inc, Union). All conditions must hold.
func (s *Store) Update(ctx context.Context, coll, id string, fields map[string]any, conds ...Condition) error {
	_, err := s.update(ctx, coll, id, fields, conds)
	return err
}

// Increment atomically adds delta to the number at path and returns the result.
func (s *Store) Increment(ctx context.Context, coll, id, path string, delta int, conds ...Condition) (int, error) {
	return s.IncrementFloor(ctx, coll, id, path, delta, nil, conds...)
}

// IncrementFloor is Increment with the result clamped to at least *floor.
func (s *Store) IncrementFloor(ctx context.Context, coll, id, path string, delta int, floor *int, conds ...Condition) (int, error) {
	t := Inc(delta)
	if floor != nil {
		t = t.AtLeast(*floor)
	}
	d, err := s.update(ctx, coll, id, map[string]any{path: t}, conds)
	if err != nil {
		return 0, err
	}
	n, _ := toNumber(lookup(d, path))
	return int(n), nil
}

func (s *Store) update(ctx context.Context, coll, id string, fields map[string]any, conds []Condition) (Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collection(coll)[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", coll, id, ErrNotFound)
	}
	for _, c := range conds {
		want, err := normalize(c.Equals)
		if err != nil {
			return nil, err
		}
		if !equal(lookup(rec.data, c.Path), want) {
			return nil, fmt.Errorf("%s/%s %s: %w", coll, id, c.Path, ErrConditionFailed)
		}
	}
	if err := s.check(ctx, OpUpdate, coll, id, rec.data, Doc(fields)); err != nil {
		return nil, err
	}
	next := clone(rec.data)
	for path, v := range fields {
		if t, ok := v.(Transform); ok {
			assign(next, path, t.apply(lookup(next, path)))
			continue
		}
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", path, err)
		}
		assign(next, path, nv)
	}
	if err := s.commit(ctx, coll, id, next); err != nil {
		return nil, err
	}
	return clone(next), nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collection(coll)[id]
	if !ok {
		return nil
	}
	if err := s.check(ctx, OpDelete, coll, id, rec.data, nil); err != nil {
		return err
	}
	if s.persister != nil {
		if err := s.persister.Delete(ctx, coll, id); err != nil {
			return fmt.Errorf("persist delete %s/%s: %w", coll, id, err)
		}
	}
	delete(s.colls[coll], id)
	s.notify(coll, id)
	return nil
}

// Query returns the documents of coll sorted and limited by q.
func (s *Store) Query(ctx context.Context, coll string, q Query) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(coll, q), nil
}

func (s *Store) query(coll string, q Query) []Snapshot {
	snaps := lo.MapToSlice(s.colls[coll], func(id string, rec *record) Snapshot {
		return Snapshot{Collection: coll, ID: id, Exists: true, Data: clone(rec.data), UpdatedAt: rec.updated}
	})
	sort.SliceStable(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if q.OrderBy != "" {
			if c := compare(lookup(a.Data, q.OrderBy), lookup(b.Data, q.OrderBy)); c != 0 {
				return (c > 0) == q.Desc
			}
		}
		return a.ID < b.ID
	})
	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps
}

func (s *Store) snapshot(coll, id string) Snapshot {
	snap := Snapshot{Collection: coll, ID: id}
	if rec, ok := s.colls[coll][id]; ok {
		snap.Exists, snap.Data, snap.UpdatedAt = true, clone(rec.data), rec.updated
	}
	return snap
}

// commit persists and installs d, then notifies subscribers. Caller holds mu.
func (s *Store) commit(ctx context.Context, coll, id string, d Doc) error {
	now := s.now()
	if s.persister != nil {
		body, err := json.Marshal(d)
		if err != nil {
			return err
		}
		if err := s.persister.Save(ctx, Record{Collection: coll, ID: id, Body: body, UpdatedAt: now}); err != nil {
			return fmt.Errorf("persist %s/%s: %w", coll, id, err)
		}
	}
	s.collection(coll)[id] = &record{data: d, updated: now}
	s.notify(coll, id)
	return nil
}

// Subscribe pushes the document's snapshot now and after every write until
// ctx is done, then closes the channel.
func (s *Store) Subscribe(ctx context.Context, coll, id string) <-chan Snapshot {
	sub := &docSub{key: docKey{coll, id}, ch: make(chan Snapshot, 1)}
	s.mu.Lock()
	subs, ok := s.docSubs[sub.key]
	if !ok {
		subs = make(map[*docSub]struct{})
		s.docSubs[sub.key] = subs
	}
	subs[sub] = struct{}{}
	offer(sub.ch, s.snapshot(coll, id))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.docSubs[sub.key], sub)
		if len(s.docSubs[sub.key]) == 0 {
			delete(s.docSubs, sub.key)
		}
		s.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch
}

// SubscribeQuery pushes the query result now and after every write to coll
// until ctx is done.
func (s *Store) SubscribeQuery(ctx context.Context, coll string, q Query) <-chan []Snapshot {
	sub := &querySub{coll: coll, q: q, ch: make(chan []Snapshot, 1)}
	s.mu.Lock()
	subs, ok := s.querySubs[coll]
	if !ok {
		subs = make(map[*querySub]struct{})
		s.querySubs[coll] = subs
	}
	subs[sub] = struct{}{}
	offer(sub.ch, s.query(coll, q))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.querySubs[coll], sub)
		s.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch
}

// notify pushes fresh snapshots to subscribers. Caller holds mu.
func (s *Store) notify(coll, id string) {
	if subs := s.docSubs[docKey{coll, id}]; len(subs) > 0 {
		snap := s.snapshot(coll, id)
		for sub := range subs {
			offer(sub.ch, snap)
		}
	}
	for sub := range s.querySubs[coll] {
		offer(sub.ch, s.query(coll, sub.q))
	}
}

// offer sends v, replacing an unread older value. Only called under mu, so
// there is a single producer per channel.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *Store) check(ctx context.Context, op Op, coll, id string, before, payload Doc) error {
	if s.rules == nil {
		return nil
	}
	req := Request{Op: op, Collection: coll, ID: id, Auth: AuthFrom(ctx), Before: before, Payload: payload}
	if err := s.rules(ctx, req); err != nil {
		perr := &PermissionError{Op: op, Path: coll + "/" + id, Auth: req.Auth, Payload: payloadFields(payload), Reason: err.Error()}
		log.Error().Str("op", string(op)).Str("path", perr.Path).Str("auth", req.Auth).
			Interface("payload", perr.Payload).Str("reason", perr.Reason).Msg("write denied")
		return perr
	}
	return nil
}

func payloadFields(d Doc) map[string]any {
	if d == nil {
		return nil
	}
	return lo.MapValues(d, func(v any, _ string) any {
		if t, ok := v.(Transform); ok {
			return t.String()
		}
		return v
	})
}

// Paths lists the dotted paths written by a payload, sorted.
func Paths(payload Doc) []string {
	keys := lo.Keys(payload)
	sort.Strings(keys)
	return keys
}

// Root returns the first segment of a dotted path.
func Root(path string) string {
	root, _, _ := strings.Cut(path, ".")
	return root
}
