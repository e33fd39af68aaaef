// Package profile persists per-profile manifest generations on disk,
// adapted from the teacher's single-directory atomic-write config storage
// into a generation-numbered, symlink-addressed profile history: each
// commit gets its own "<n>-link" directory and a "current" symlink is
// swapped atomically to point at the newest committed generation.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"disnix/internal/config"
	"disnix/internal/manifest"
	"disnix/pkg/logging"
)

// ErrNoGenerations is returned by DetermineManifestToOpen when a profile
// has never been committed.
var ErrNoGenerations = errors.New("profile: no committed generations")

const manifestFilename = "manifest.xml"

// Store manages the on-disk generation history for one coordinator
// profile under cfg.ProfilesDir/<profile>/.
type Store struct {
	mu   sync.Mutex
	dir  string
	name string
}

// NewStore returns a Store rooted at cfg.ProfilesDir/profileName.
func NewStore(cfg config.Config, profileName string) *Store {
	if profileName == "" {
		profileName = cfg.Profile
	}
	return &Store{
		dir:  filepath.Join(cfg.ProfilesDir, profileName),
		name: profileName,
	}
}

// Commit records manifestPath as the new current generation: it copies the
// manifest into a freshly numbered "<n>-link" directory and atomically
// repoints the "current" symlink at it. It returns the new generation
// number.
func (s *Store) Commit(manifestPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("profile: create %s: %w", s.dir, err)
	}

	generations, err := s.listGenerations()
	if err != nil {
		return 0, err
	}
	next := 1
	if len(generations) > 0 {
		next = generations[len(generations)-1] + 1
	}

	genDir := s.generationDir(next)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return 0, fmt.Errorf("profile: create generation dir: %w", err)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return 0, fmt.Errorf("profile: read manifest %s: %w", manifestPath, err)
	}
	dest := filepath.Join(genDir, manifestFilename)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return 0, fmt.Errorf("profile: write %s: %w", dest, err)
	}

	if err := s.swapCurrent(next); err != nil {
		return 0, err
	}

	logging.Info("profile", "committed %s generation %d", s.name, next)
	return next, nil
}

// swapCurrent atomically repoints the "current" symlink at generation n:
// it creates a new symlink under a temp name and renames it over "current",
// which is atomic on POSIX filesystems.
func (s *Store) swapCurrent(n int) error {
	current := filepath.Join(s.dir, "current")
	tmp := filepath.Join(s.dir, fmt.Sprintf(".current-%d.tmp", n))
	target := s.linkName(n)

	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("profile: create current symlink: %w", err)
	}
	if err := os.Rename(tmp, current); err != nil {
		return fmt.Errorf("profile: swap current symlink: %w", err)
	}
	return nil
}

// CurrentGeneration returns the generation number "current" points at.
func (s *Store) CurrentGeneration() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := os.Readlink(filepath.Join(s.dir, "current"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoGenerations
		}
		return 0, fmt.Errorf("profile: read current link: %w", err)
	}
	return s.parseLinkName(target)
}

// DetermineManifestToOpen loads the manifest for the newest committed
// generation. If "current" is missing or points at a generation whose
// manifest file is absent or unparsable — the partial-commit case where a
// rename happened but the prior write did not finish — it falls back to
// the newest generation directory that actually parses, per the recovery
// rule: never fail open on a dangling pointer.
func (s *Store) DetermineManifestToOpen(flags manifest.LoadFlags) (*manifest.Manifest, error) {
	s.mu.Lock()
	generations, err := s.listGenerations()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(generations) == 0 {
		return nil, ErrNoGenerations
	}

	if gen, err := s.CurrentGeneration(); err == nil {
		if m, err := manifest.Load(s.ManifestPath(gen), flags); err == nil {
			return m, nil
		}
		logging.Warn("profile", "current generation %d for %s did not load cleanly, falling back to newest valid generation", gen, s.name)
	}

	for i := len(generations) - 1; i >= 0; i-- {
		gen := generations[i]
		m, err := manifest.Load(s.ManifestPath(gen), flags)
		if err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("profile: %w: %s has no generation with a loadable manifest", ErrNoGenerations, s.name)
}

// ManifestPath returns the on-disk manifest path for a given generation.
func (s *Store) ManifestPath(generation int) string {
	return filepath.Join(s.generationDir(generation), manifestFilename)
}

// List returns every committed generation number, ascending.
func (s *Store) List() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listGenerations()
}

func (s *Store) generationDir(n int) string {
	return filepath.Join(s.dir, s.linkName(n))
}

func (s *Store) linkName(n int) string {
	return fmt.Sprintf("%d-link", n)
}

func (s *Store) parseLinkName(name string) (int, error) {
	trimmed := strings.TrimSuffix(name, "-link")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("profile: malformed generation link %q", name)
	}
	return n, nil
}

func (s *Store) listGenerations() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: list %s: %w", s.dir, err)
	}

	var generations []int
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), "-link") {
			continue
		}
		n, err := s.parseLinkName(entry.Name())
		if err != nil {
			continue
		}
		generations = append(generations, n)
	}
	sort.Ints(generations)
	return generations, nil
}
