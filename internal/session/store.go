// Package session keeps each visitor's widgets in memory. Nothing here
// outlives the process; an expired session starts over from IDLE.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/viewstate"
)

// Generator is the generation client as the two widgets see it.
type Generator interface {
	viewstate.CaseStudyRequester
	viewstate.DiseaseSetRequester
}

// Notifier receives every view change of a session's widgets.
type Notifier interface {
	QuizChanged(sessionID uuid.UUID, view viewstate.QuizView)
	GalleryChanged(sessionID uuid.UUID, view viewstate.GalleryView)
}

type Session struct {
	ID        uuid.UUID
	Quiz      *viewstate.QuizMachine
	Gallery   *viewstate.GalleryMachine
	CreatedAt time.Time
}

type Store struct {
	cache    *cache.Cache
	client   Generator
	notifier Notifier
	log      logger.ILogger
}

// NewStore keeps idle sessions for ttl and purges them every ttl/4.
func NewStore(client Generator, notifier Notifier, ttl time.Duration, log logger.ILogger) *Store {
	cleanup := ttl / 4
	if cleanup < time.Second {
		cleanup = time.Second
	}

	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(key string, _ interface{}) {
		log.Debug("session", "session expired", map[string]interface{}{"session_id": key})
	})

	return &Store{
		cache:    c,
		client:   client,
		notifier: notifier,
		log:      log,
	}
}

// Get returns a live session and extends its lifetime.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	x, found := s.cache.Get(id.String())
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	s.cache.Set(id.String(), sess, cache.DefaultExpiration)
	return sess, true
}

// GetOrCreate returns the visitor's session, creating fresh widgets when none
// is live. created reports whether a new session was built.
func (s *Store) GetOrCreate(id uuid.UUID) (sess *Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}

	fresh := s.newSession(id)
	if err := s.cache.Add(id.String(), fresh, cache.DefaultExpiration); err != nil {
		// lost the race to a concurrent request for the same visitor
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
		s.cache.Set(id.String(), fresh, cache.DefaultExpiration)
	}

	s.log.Info("session", "session created", map[string]interface{}{"session_id": id.String()})
	return fresh, true
}

func (s *Store) Delete(id uuid.UUID) {
	s.cache.Delete(id.String())
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}

func (s *Store) newSession(id uuid.UUID) *Session {
	var onQuiz func(viewstate.QuizView)
	var onGallery func(viewstate.GalleryView)
	if s.notifier != nil {
		onQuiz = func(v viewstate.QuizView) { s.notifier.QuizChanged(id, v) }
		onGallery = func(v viewstate.GalleryView) { s.notifier.GalleryChanged(id, v) }
	}

	return &Session{
		ID:        id,
		Quiz:      viewstate.NewQuizMachine(s.client, onQuiz),
		Gallery:   viewstate.NewGalleryMachine(s.client, onGallery),
		CreatedAt: time.Now(),
	}
}
