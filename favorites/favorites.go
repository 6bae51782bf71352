// Package favorites owns the user's saved photo collection.
//
// The collection lives in a single persistence slot as a JSON array of
// photos, in insertion order, with no two photos sharing an id. Every
// mutation is a read-modify-write of the whole slot. Two processes sharing
// a slot are not coordinated: the last write wins.
package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/robertmeta/rover-cli/model"
)

// SlotKey is the slot name used for the collection.
const SlotKey = "savedImages"

var (
	// ErrAlreadySaved indicates a photo with the same id is already saved.
	ErrAlreadySaved = errors.New("image already saved")

	// ErrNotFound indicates no saved photo has the requested id.
	ErrNotFound = errors.New("saved image not found")

	// ErrIndexOutOfRange indicates a position outside the collection.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// AlreadySavedError names the photo that was saved twice.
type AlreadySavedError struct {
	ID int64
}

// Error implements the error interface
func (e *AlreadySavedError) Error() string {
	return fmt.Sprintf("This image has already been saved. ID: %d", e.ID)
}

// Is implements errors.Is support
func (e *AlreadySavedError) Is(target error) bool {
	return target == ErrAlreadySaved
}

// Slot is the persistence backing of a Store.
// Read returns nil when nothing has been written.
type Slot interface {
	Read() ([]byte, error)
	Write([]byte) error
	Remove() error
}

// Store holds the collection and keeps the slot in sync with it.
type Store struct {
	mu     sync.Mutex
	slot   Slot
	photos []model.Photo
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for slot problems.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store over slot. Call Load to read existing favorites.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:   slot,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the slot and returns the collection. A missing, unreadable or
// malformed slot yields an empty collection.
func (s *Store) Load() []model.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()

	photos, err := s.read()
	if err != nil {
		s.logger.Warn("favorites slot unreadable, treating as empty", "err", err)
	}
	s.photos = photos
	return clone(s.photos)
}

// Add appends photo unless a photo with the same id is already saved.
func (s *Store) Add(photo model.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	if indexOf(current, photo.ID) >= 0 {
		s.photos = current
		return &AlreadySavedError{ID: photo.ID}
	}

	updated := append(clone(current), photo)
	if err := s.write(updated); err != nil {
		return err
	}
	s.photos = updated
	return nil
}

// Remove deletes the photo with the given id.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	i := indexOf(current, id)
	if i < 0 {
		s.photos = current
		return fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	return s.removeLocked(current, i)
}

// RemoveAt deletes the photo at position, counted in insertion order.
func (s *Store) RemoveAt(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	if position < 0 || position >= len(current) {
		s.photos = current
		return fmt.Errorf("position %d of %d: %w", position, len(current), ErrIndexOutOfRange)
	}
	return s.removeLocked(current, position)
}

func (s *Store) removeLocked(current []model.Photo, i int) error {
	updated := make([]model.Photo, 0, len(current)-1)
	updated = append(updated, current[:i]...)
	updated = append(updated, current[i+1:]...)
	if err := s.write(updated); err != nil {
		return err
	}
	s.photos = updated
	return nil
}

// Clear empties the collection and the slot. The in-memory collection is
// emptied even when the slot cannot be removed.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.photos = nil
	if err := s.slot.Remove(); err != nil {
		return fmt.Errorf("failed to clear favorites: %w", err)
	}
	return nil
}

// List returns a snapshot of the collection in insertion order.
func (s *Store) List() []model.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.photos)
}

// Exists reports whether a photo with id is saved.
func (s *Store) Exists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.photos, id) >= 0
}

// Get returns the saved photo with id.
func (s *Store) Get(id int64) (model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.photos, id)
	if i < 0 {
		return model.Photo{}, fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	return s.photos[i], nil
}

// Len returns the number of saved photos.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

// read decodes the slot. Only slot I/O fails; malformed content reads as
// empty so the next write replaces it. Callers hold mu.
func (s *Store) read() ([]model.Photo, error) {
	data, err := s.slot.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var photos []model.Photo
	if err := json.Unmarshal(data, &photos); err != nil {
		s.logger.Warn("favorites slot malformed, treating as empty", "err", err)
		return nil, nil
	}
	return dedupe(photos), nil
}

// write encodes photos into the slot. Callers hold mu.
func (s *Store) write(photos []model.Photo) error {
	if photos == nil {
		photos = []model.Photo{}
	}
	data, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}
	if err := s.slot.Write(data); err != nil {
		return fmt.Errorf("failed to save favorites: %w", err)
	}
	return nil
}

func indexOf(photos []model.Photo, id int64) int {
	for i := range photos {
		if photos[i].ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first occurrence of every id, for slots written by
// something other than this package.
func dedupe(photos []model.Photo) []model.Photo {
	seen := make(map[int64]struct{}, len(photos))
	out := photos[:0]
	for _, p := range photos {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func clone(photos []model.Photo) []model.Photo {
	if len(photos) == 0 {
		return []model.Photo{}
	}
	out := make([]model.Photo, len(photos))
	copy(out, photos)
	return out
}
