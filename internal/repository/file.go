package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"postback-relay/internal/model"
)

// ErrInvalidConfig wraps every validation failure of a routing file.
var ErrInvalidConfig = errors.New("invalid routing config")

// routingFile is the on-disk layout of PROFILES_FILE.
type routingFile struct {
	Profiles []fileProfile `yaml:"profiles"`
}

type fileProfile struct {
	ID             int64         `yaml:"id"`
	Secret         string        `yaml:"secret"`
	Enabled        *bool         `yaml:"enabled"`
	DefaultChatID  int64         `yaml:"default_chat_id"`
	DefaultTopicID *int64        `yaml:"default_topic_id"`
	RateLimitRPS   *int          `yaml:"rate_limit_rps"`
	DedupTTLSec    *int          `yaml:"dedup_ttl_sec"`
	Routes         []model.Route `yaml:"routes"`
}

type routingSnapshot struct {
	bySecret map[string]model.Profile
	routes   map[int64][]model.Route
}

// FileStore serves profiles and routes from a YAML file and can hot-reload
// it. A reload that fails validation keeps the previous snapshot.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	current *routingSnapshot
}

var (
	_ ProfileRepository = &FileStore{}
	_ RouteRepository   = &FileStore{}
)

// NewFileStore loads path and validates it.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = snap
	return s, nil
}

func (s *FileStore) GetEnabledBySecret(_ context.Context, secret string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.current.bySecret[secret]
	if !ok || !p.Enabled {
		return nil, nil
	}
	return &p, nil
}

func (s *FileStore) ListOrdered(_ context.Context, profileID int64) ([]model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := s.current.routes[profileID]
	out := make([]model.Route, len(routes))
	copy(out, routes)
	return out, nil
}

// Reload re-reads the file immediately.
func (s *FileStore) Reload() error {
	snap, err := s.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return nil
}

// Watch reloads the file whenever it is written or recreated until stop is called.
func (s *FileStore) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("routing watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("routing watcher add %s: %w", s.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if err := s.Reload(); err != nil {
						slog.Error("routing reload failed, keeping previous config", "path", s.path, "error", err)
						continue
					}
					slog.Info("routing config reloaded", "path", s.path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("routing watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func (s *FileStore) load() (*routingSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read routing config %s: %w", s.path, err)
	}
	var file routingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, s.path, err)
	}
	return buildSnapshot(file)
}

func buildSnapshot(file routingFile) (*routingSnapshot, error) {
	snap := &routingSnapshot{
		bySecret: make(map[string]model.Profile, len(file.Profiles)),
		routes:   make(map[int64][]model.Route, len(file.Profiles)),
	}
	seenIDs := make(map[int64]bool)

	for _, fp := range file.Profiles {
		p := model.Profile{
			ID:             fp.ID,
			Secret:         fp.Secret,
			Enabled:        true,
			DefaultChatID:  fp.DefaultChatID,
			DefaultTopicID: fp.DefaultTopicID,
			RateLimitRPS:   model.DefaultRateLimitRPS,
			DedupTTLSec:    model.DefaultDedupTTLSec,
		}
		if fp.Enabled != nil {
			p.Enabled = *fp.Enabled
		}
		if fp.RateLimitRPS != nil {
			p.RateLimitRPS = *fp.RateLimitRPS
		}
		if fp.DedupTTLSec != nil {
			p.DedupTTLSec = *fp.DedupTTLSec
		}

		switch {
		case p.ID <= 0:
			return nil, fmt.Errorf("%w: profile id must be positive, got %d", ErrInvalidConfig, p.ID)
		case seenIDs[p.ID]:
			return nil, fmt.Errorf("%w: duplicate profile id %d", ErrInvalidConfig, p.ID)
		case p.Secret == "":
			return nil, fmt.Errorf("%w: profile %d has no secret", ErrInvalidConfig, p.ID)
		case p.RateLimitRPS < 1:
			return nil, fmt.Errorf("%w: profile %d rate_limit_rps must be >= 1", ErrInvalidConfig, p.ID)
		case p.DedupTTLSec < 0:
			return nil, fmt.Errorf("%w: profile %d dedup_ttl_sec must be >= 0", ErrInvalidConfig, p.ID)
		}
		if _, dup := snap.bySecret[p.Secret]; dup {
			return nil, fmt.Errorf("%w: profile %d reuses another profile's secret", ErrInvalidConfig, p.ID)
		}
		seenIDs[p.ID] = true

		routes, err := buildRoutes(p.ID, fp.Routes)
		if err != nil {
			return nil, err
		}
		snap.bySecret[p.Secret] = p
		snap.routes[p.ID] = routes
	}
	return snap, nil
}

func buildRoutes(profileID int64, in []model.Route) ([]model.Route, error) {
	routes := make([]model.Route, 0, len(in))
	seen := make(map[int64]bool, len(in))

	for i, r := range in {
		r.ProfileID = profileID
		if r.ID == 0 {
			r.ID = int64(i + 1)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: profile %d has duplicate route id %d", ErrInvalidConfig, profileID, r.ID)
		}
		seen[r.ID] = true
		if r.MatchBy == "" {
			r.MatchBy = model.MatchByAny
		}
		if !r.MatchBy.Valid() {
			return nil, fmt.Errorf("%w: route %d has unknown match_by %q", ErrInvalidConfig, r.ID, r.MatchBy)
		}
		if r.IsRegex {
			if _, err := regexp.Compile(r.MatchValue); err != nil {
				return nil, fmt.Errorf("%w: route %d pattern: %v", ErrInvalidConfig, r.ID, err)
			}
		}
		if r.TargetChatID == 0 {
			return nil, fmt.Errorf("%w: route %d has no target_chat_id", ErrInvalidConfig, r.ID)
		}
		if r.Priority == 0 {
			r.Priority = model.DefaultPriority
		}
		routes = append(routes, r)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Priority != routes[j].Priority {
			return routes[i].Priority < routes[j].Priority
		}
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}
