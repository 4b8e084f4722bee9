package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Load when no session state exists for a
// platform. It is an expected condition, not a failure.
var ErrNotFound = errors.New("session state not found")

// Cookie is one persisted cookie. A trimmed-down http.Cookie that survives
// JSON round-trips.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// State is the opaque authentication bundle for one platform: cookies plus
// a key/value storage snapshot. Scoped per platform, reused across runs.
type State struct {
	Platform models.Platform   `json:"platform"`
	Cookies  []Cookie          `json:"cookies"`
	Storage  map[string]string `json:"storage,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
}

// HTTPCookies converts the snapshot into cookies usable by an HTTP client.
func (s *State) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	return out
}

// HasValidCookie reports whether the state carries a non-expired cookie with
// the given marker name. Callers use this to avoid saving a broken session
// over a good one.
func (s *State) HasValidCookie(marker string) bool {
	for _, c := range s.Cookies {
		if c.Name != marker {
			continue
		}
		if c.Value == "" {
			return false
		}
		if !c.Expires.IsZero() && c.Expires.Before(time.Now()) {
			return false
		}
		return true
	}
	return false
}

// Manager persists per-platform session state as one blob file per platform.
// Access to each platform's file is serialized so concurrent runs cannot
// overwrite a freshly saved session mid-use.
type Manager struct {
	dir string

	mu    sync.Mutex
	locks map[models.Platform]*sync.Mutex
}

// NewManager creates a manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Manager{
		dir:   dir,
		locks: make(map[models.Platform]*sync.Mutex),
	}, nil
}

func (m *Manager) lockFor(platform models.Platform) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[platform]
	if !ok {
		l = &sync.Mutex{}
		m.locks[platform] = l
	}
	return l
}

func (m *Manager) path(platform models.Platform) string {
	return filepath.Join(m.dir, string(platform)+".json")
}

// Load restores prior session state for a platform. Returns ErrNotFound when
// no state has ever been saved, which callers treat as "login required".
func (m *Manager) Load(platform models.Platform) (*State, error) {
	l := m.lockFor(platform)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(m.path(platform))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session state for %s: %w", platform, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt blob is treated like a missing one: the caller logs in
		// again and overwrites it.
		logrus.Warnf("Discarding corrupt session state for %s: %v", platform, err)
		return nil, ErrNotFound
	}

	return &state, nil
}

// Save writes session state for a platform. The write is atomic (temp file
// plus rename) so a crash mid-save never leaves a truncated blob. Callers
// must validate the state before saving.
func (m *Manager) Save(platform models.Platform, state *State) error {
	l := m.lockFor(platform)
	l.Lock()
	defer l.Unlock()

	state.Platform = platform
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tmp := m.path(platform) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tmp, m.path(platform)); err != nil {
		return fmt.Errorf("failed to commit session state: %w", err)
	}

	logrus.Debugf("Saved session state for %s (%d cookies)", platform, len(state.Cookies))
	return nil
}

// Delete removes stored state for a platform. Missing state is not an error.
func (m *Manager) Delete(platform models.Platform) error {
	l := m.lockFor(platform)
	l.Lock()
	defer l.Unlock()

	err := os.Remove(m.path(platform))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session state for %s: %w", platform, err)
	}
	return nil
}
