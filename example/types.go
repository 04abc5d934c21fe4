// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package main

import (
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/liggitt/tabwriter"
	"github.com/spf13/pflag"

	"github.com/cilium/tinymap"
)

// Config defines the command-line configuration for the session store
// example application.
type Config struct {
	ListenAddress  string        `mapstructure:"listen-address"`
	InlineSessions int           `mapstructure:"inline-sessions"`
	MaxTags        int           `mapstructure:"max-tags"`
	SessionTTL     time.Duration `mapstructure:"session-ttl"`
	SessionsPerSec float64       `mapstructure:"sessions-per-sec"`
	ExpireInterval time.Duration `mapstructure:"expire-interval"`
}

func (def Config) Flags(flags *pflag.FlagSet) {
	flags.String("listen-address", "127.0.0.1:8080", "Address to serve the session API on")
	flags.Int("inline-sessions", 16, "Number of sessions the store holds inline before moving to the heap")
	flags.Int("max-tags", 8, "Maximum number of tags per session")
	flags.Duration("session-ttl", 15*time.Minute, "Session lifetime")
	flags.Float64("sessions-per-sec", 100, "Rate limit for session creation")
	flags.Duration("expire-interval", 30*time.Second, "Interval between expiry sweeps")
}

// Session is one client session. Tags is fixed-capacity: a session can
// carry at most --max-tags tags and creating one with more fails.
type Session struct {
	ID      string    `json:"id" yaml:"id"`
	User    string    `json:"user" yaml:"user"`
	Created time.Time `json:"created" yaml:"created"`
	Expires time.Time `json:"expires" yaml:"expires"`

	Tags *tinymap.ArraySet[string] `json:"tags" yaml:"tags"`
}

// clone returns a copy sharing nothing with sess.
func (sess *Session) clone() *Session {
	c := *sess
	c.Tags = sess.Tags.Clone()
	return &c
}

// SessionStore holds the sessions keyed by ID, and per-user session counts.
// Both maps start inline, sized for the common case, and move to the heap
// when an instance grows past that. The store synchronizes access; the
// containers themselves are not safe for concurrent use.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxTags  int
	sessions *tinymap.Map[string, *Session]
	users    *tinymap.Map[string, int]

	created      *expvar.Int
	replaced     *expvar.Int
	deleted      *expvar.Int
	expired      *expvar.Int
	tagsRejected *expvar.Int
}

// NewSessionStore builds the store from the configuration and publishes
// its metrics.
func NewSessionStore(cfg Config) (*SessionStore, error) {
	return newSessionStore(cfg, true)
}

// newSessionStore with publish=false keeps the metrics off the process-wide
// expvar registry, so tests can build any number of stores.
func newSessionStore(cfg Config, publish bool) (*SessionStore, error) {
	if cfg.InlineSessions < 0 {
		return nil, fmt.Errorf("invalid --inline-sessions: %d", cfg.InlineSessions)
	}
	if cfg.MaxTags < 0 {
		return nil, fmt.Errorf("invalid --max-tags: %d", cfg.MaxTags)
	}

	newInt := func(name string) *expvar.Int {
		if publish {
			return expvar.NewInt(name)
		}
		return new(expvar.Int)
	}
	s := &SessionStore{
		ttl:          cfg.SessionTTL,
		maxTags:      cfg.MaxTags,
		sessions:     tinymap.NewMap[string, *Session](cfg.InlineSessions),
		users:        tinymap.NewMap[string, int](cfg.InlineSessions),
		created:      newInt("sessions_created"),
		replaced:     newInt("sessions_replaced"),
		deleted:      newInt("sessions_deleted"),
		expired:      newInt("sessions_expired"),
		tagsRejected: newInt("session_tags_rejected"),
	}
	if publish {
		expvar.Publish("sessions", expvar.Func(func() any {
			s.mu.Lock()
			defer s.mu.Unlock()
			return map[string]any{
				"count":    s.sessions.Len(),
				"promoted": s.sessions.Promoted(),
				"users":    s.users.Len(),
			}
		}))
	}
	return s, nil
}

// Create adds a session for the user, replacing any previous session with
// the same ID, and returns the caller's own copy of it. It fails if more
// than the configured maximum of distinct tags is given; the error wraps
// tinymap.ErrCapacityExceeded.
func (s *SessionStore) Create(id, user string, tags []string) (*Session, error) {
	sess := &Session{
		ID:      id,
		User:    user,
		Created: time.Now(),
		Expires: time.Now().Add(s.ttl),
		Tags:    tinymap.NewArraySet[string](s.maxTags),
	}
	for _, tag := range tags {
		if _, err := sess.Tags.TryInsert(tag); err != nil {
			s.tagsRejected.Add(1)
			return nil, fmt.Errorf("session %q: too many tags: %w", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, hadOld := s.sessions.Insert(id, sess)
	if hadOld {
		s.replaced.Add(1)
		s.dropUserLocked(old.User)
	} else {
		s.created.Add(1)
	}
	s.users.Entry(user).AndModify(func(n *int) { *n++ }).OrInsert(1)
	return sess.clone(), nil
}

// Get returns a copy of the session with the given ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions.Get(id)
	if !found {
		return nil, false
	}
	return sess.clone(), true
}

// Touch extends the session's lifetime by the configured TTL, reporting
// whether the session exists.
func (s *SessionStore) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions.Get(id)
	if !found {
		return false
	}
	sess.Expires = time.Now().Add(s.ttl)
	return true
}

// Delete removes the session with the given ID, reporting whether it
// existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, hadOld := s.sessions.Delete(id)
	if !hadOld {
		return false
	}
	s.dropUserLocked(sess.User)
	s.deleted.Add(1)
	return true
}

// ExpireBefore removes every session whose lifetime ended before the given
// time and returns how many were removed.
func (s *SessionStore) ExpireBefore(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Collect first: the map must not be modified during iteration.
	var ids []string
	for id, sess := range s.sessions.All() {
		if sess.Expires.Before(now) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		sess, _ := s.sessions.Delete(id)
		s.dropUserLocked(sess.User)
	}
	s.expired.Add(int64(len(ids)))
	return len(ids)
}

func (s *SessionStore) dropUserLocked(user string) {
	if n := s.users.GetPtr(user); n != nil {
		*n--
		if *n <= 0 {
			s.users.Delete(user)
		}
	}
}

// DumpSessions writes the sessions as an aligned table, in ID order.
func (s *SessionStore) DumpSessions(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tw := tabwriter.NewWriter(w, 5, 4, 3, ' ', tabwriter.RememberWidths)
	fmt.Fprintf(tw, "ID\tUSER\tCREATED\tEXPIRES\tTAGS\n")
	for _, sess := range s.sessions.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			sess.ID,
			sess.User,
			sess.Created.Format(time.RFC3339),
			sess.Expires.Format(time.RFC3339),
			strings.Join(sess.Tags.Slice(), ","))
	}
	tw.Flush()
}

// DumpUsers writes the per-user session counts as an aligned table, in
// user order.
func (s *SessionStore) DumpUsers(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tw := tabwriter.NewWriter(w, 5, 4, 3, ' ', tabwriter.RememberWidths)
	fmt.Fprintf(tw, "USER\tSESSIONS\n")
	for user, count := range s.users.All() {
		fmt.Fprintf(tw, "%s\t%d\n", user, count)
	}
	tw.Flush()
}

// Snapshot returns a copy of the session map, safe to encode or inspect
// while the store moves on. The sessions in it are copies too: Clone alone
// would re-box the shared *Session pointers.
func (s *SessionStore) Snapshot() *tinymap.Map[string, *Session] {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := tinymap.NewMap[string, *Session](s.sessions.Cap())
	for id, sess := range s.sessions.All() {
		snap.Insert(id, sess.clone())
	}
	return snap
}
