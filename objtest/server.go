// Package objtest provides an in-memory fake of the object storage REST API
// for tests.
//
// The fake stores objects in memory, enforces bearer authorization, records
// every request it receives and can be told to fail upcoming requests:
//
//	srv := objtest.NewServer(objtest.WithSecret("secret"))
//	defer srv.Close()
//
//	srv.FailNext(objtest.Fault{Status: http.StatusServiceUnavailable})
//
//	client, _ := eiostore.New(srv.URL, eiostore.WithSecret("secret"))
package objtest

import (
	"crypto/md5" //#nosec G501 -- content hash reported by the service, not a security primitive
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/eiostore"
)

// Object is a stored object.
type Object struct {
	ID        string
	Data      []byte
	Header    http.Header
	CreatedAt time.Time
}

// Info returns the JSON description the fake reports for o.
func (o *Object) Info() eiostore.ObjectInfo {
	sum := md5.Sum(o.Data) //#nosec G401 -- see import
	meta := eiostore.ObjectMetadata{Header: o.Header}
	info := eiostore.ObjectInfo{
		ObjectID:      o.ID,
		ContentType:   o.Header.Get("Content-Type"),
		ContentLength: int64(len(o.Data)),
		MD5:           hex.EncodeToString(sum[:]),
		CreatedAt:     o.CreatedAt,
	}
	if m := meta.Meta(); len(m) > 0 {
		info.Meta = m
	}
	if q := meta.Query(); len(q) > 0 {
		info.Query = q
	}
	return info
}

// Request is a request received by the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Fault describes how the fake answers one upcoming request instead of
// serving it.
type Fault struct {
	// Status is written with an error body when non-zero.
	Status int
	// Drop closes the connection without a response.
	Drop bool
	// Delay stalls before applying the fault, or before serving the
	// request when Status is zero and Drop is false.
	Delay time.Duration
}

// Server is a running fake.
type Server struct {
	*httptest.Server
	store *store
}

// Option configures a Server.
type Option func(*store)

// WithSecret makes the fake verify HS256 tokens against secret. Without it
// any bearer token is accepted.
func WithSecret(secret string) Option {
	return func(s *store) {
		s.secret = []byte(secret)
	}
}

// NewServer starts a fake listening on a local port.
func NewServer(opts ...Option) *Server {
	s := newStore()
	for _, opt := range opts {
		opt(s)
	}
	return &Server{
		Server: httptest.NewServer(newHandler(s).Router()),
		store:  s,
	}
}

// FailNext queues faults, applied one per request in order.
func (s *Server) FailNext(faults ...Fault) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.faults = append(s.store.faults, faults...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return append([]Request(nil), s.store.requests...)
}

// RequestCount returns the number of requests received so far.
func (s *Server) RequestCount() int {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return len(s.store.requests)
}

// Object returns a copy of the stored object id.
func (s *Server) Object(id string) (Object, bool) {
	return s.store.get(id)
}

// Seed stores an object directly, bypassing the API.
func (s *Server) Seed(id string, data []byte, header http.Header) {
	if header == nil {
		header = make(http.Header)
	}
	s.store.put(&Object{ID: id, Data: data, Header: header, CreatedAt: time.Now().UTC()})
}

// Len returns the number of stored objects.
func (s *Server) Len() int {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return len(s.store.objects)
}

type store struct {
	secret []byte

	mu       sync.Mutex
	objects  map[string]*Object
	faults   []Fault
	requests []Request
}

func newStore() *store {
	return &store{objects: make(map[string]*Object)}
}

func (s *store) record(r Request) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
	if len(s.faults) == 0 {
		return Fault{}, false
	}
	f := s.faults[0]
	s.faults = s.faults[1:]
	return f, true
}

func (s *store) get(id string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return Object{}, false
	}
	return Object{
		ID:        o.ID,
		Data:      append([]byte(nil), o.Data...),
		Header:    o.Header.Clone(),
		CreatedAt: o.CreatedAt,
	}, true
}

func (s *store) put(o *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if existing, ok := s.objects[o.ID]; ok {
		o.CreatedAt = existing.CreatedAt
	}
	s.objects[o.ID] = o
}

func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	return true
}

// match returns the objects whose query tags contain every pair in query.
func (s *store) match(query map[string]string) []*Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Object
	for _, o := range s.objects {
		tags := eiostore.ObjectMetadata{Header: o.Header}.Query()
		ok := true
		for k, v := range query {
			if tags[strings.ToLower(k)] != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, o)
		}
	}
	return out
}

func (s *store) deleteMatching(query map[string]string) int {
	matched := s.match(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range matched {
		delete(s.objects, o.ID)
	}
	return len(matched)
}
