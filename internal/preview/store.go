package preview

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ravin1100/multimodal-qa/pkg/models"
)

// PathPrefix is where preview handles are served by the web client
const PathPrefix = "/preview/"

// Handle references a preview of a selected image
type Handle struct {
	ID  string
	URL string
}

// Valid reports whether the handle references anything
func (h Handle) Valid() bool {
	return h.ID != ""
}

// Store holds preview content until its handle is released.
// Every Create must be paired with a Release or a Close.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*models.ImageFile
}

// NewStore creates an empty preview store
func NewStore() *Store {
	return &Store{entries: make(map[string]*models.ImageFile)}
}

// Create registers img and returns a new handle for it
func (s *Store) Create(img *models.ImageFile) Handle {
	id := uuid.NewString()

	s.mu.Lock()
	s.entries[id] = img
	s.mu.Unlock()

	return Handle{ID: id, URL: PathPrefix + id}
}

// Get returns the image behind a handle ID
func (s *Store) Get(id string) (*models.ImageFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.entries[id]
	return img, ok
}

// Release frees a handle. Releasing an unknown or empty ID is a no-op.
func (s *Store) Release(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len returns the number of live handles
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close releases every handle
func (s *Store) Close() {
	s.mu.Lock()
	s.entries = make(map[string]*models.ImageFile)
	s.mu.Unlock()
}
