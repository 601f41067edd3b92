package session

import (
	"context"
	"sync"
	"time"

	"tryon-studio/internal/tryon"
)

type Slot int

const (
	SlotPerson Slot = iota
	SlotGarment
)

func (s Slot) String() string {
	if s == SlotGarment {
		return "garment"
	}
	return "person"
}

type Session struct {
	UserID       int64
	Username     string
	Person       tryon.UploadedImage
	Garment      tryon.UploadedImage
	GarmentID    string
	LastOutcome  *tryon.Outcome
	LastActivity time.Time

	guard *tryon.Guard
	// revision counts image changes; startedAt is the revision the
	// in-flight generation was started with.
	revision  uint64
	startedAt uint64
}

type Snapshot struct {
	Person      tryon.UploadedImage
	Garment     tryon.UploadedImage
	GarmentID   string
	LastOutcome *tryon.Outcome
	Loading     bool
}

func (s Snapshot) Ready() bool {
	return !s.Person.IsEmpty() && !s.Garment.IsEmpty()
}

type Options struct {
	IdleTTL time.Duration
}

type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		idleTTL:  opts.IdleTTL,
		now:      time.Now,
	}
}

func (s *Store) Put(userID int64, username string, slot Slot, img tryon.UploadedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()
	sess.LastOutcome = nil
	sess.revision++

	switch slot {
	case SlotGarment:
		sess.Garment = img
		sess.GarmentID = ""
	default:
		sess.Person = img
	}
}

func (s *Store) PutGarment(userID int64, username, garmentID string, img tryon.UploadedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()
	sess.LastOutcome = nil
	sess.revision++
	sess.Garment = img
	sess.GarmentID = garmentID
}

// Fill places an untagged photo: the garment slot when preferGarment is set,
// otherwise the first empty slot. With both slots taken the person photo is
// replaced.
func (s *Store) Fill(userID int64, username string, img tryon.UploadedImage, preferGarment bool) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()
	sess.LastOutcome = nil
	sess.revision++

	slot := SlotPerson
	switch {
	case preferGarment:
		slot = SlotGarment
	case !sess.Person.IsEmpty() && sess.Garment.IsEmpty():
		slot = SlotGarment
	}

	if slot == SlotGarment {
		sess.Garment = img
		sess.GarmentID = ""
	} else {
		sess.Person = img
	}
	return slot
}

func (s *Store) Snapshot(userID int64, username string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()

	return Snapshot{
		Person:      sess.Person,
		Garment:     sess.Garment,
		GarmentID:   sess.GarmentID,
		LastOutcome: sess.LastOutcome,
		Loading:     sess.guard.InFlight(),
	}
}

func (s *Store) Begin(ctx context.Context, userID int64, username string) (tryon.Ticket, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()

	t, reqCtx, err := sess.guard.Acquire(ctx)
	if err != nil {
		return t, nil, err
	}
	sess.startedAt = sess.revision
	return t, reqCtx, nil
}

// Finish ends the generation started with t and records out. It reports
// false when the session was reset or an image changed meanwhile; the
// outcome is then dropped.
func (s *Store) Finish(userID int64, t tryon.Ticket, out tryon.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if !sess.guard.Release(t) || sess.startedAt != sess.revision {
		return false
	}
	sess.LastOutcome = &out
	sess.LastActivity = s.now()
	return true
}

func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.guard.Reset()
	sess.Person = tryon.UploadedImage{}
	sess.Garment = tryon.UploadedImage{}
	sess.GarmentID = ""
	sess.LastOutcome = nil
	sess.revision++
	sess.LastActivity = s.now()
}

func (s *Store) Prune() int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) && !sess.guard.InFlight() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) getOrCreateLocked(userID int64, username string) *Session {
	if sess, ok := s.sessions[userID]; ok {
		if sess.Username == "" && username != "" {
			sess.Username = username
		}
		return sess
	}

	sess := &Session{
		UserID:       userID,
		Username:     username,
		LastActivity: s.now(),
		guard:        &tryon.Guard{},
	}
	s.sessions[userID] = sess
	return sess
}
