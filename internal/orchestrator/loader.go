package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/skills"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// ErrDuplicateAgentID is returned when two manifests declare the same ID.
var ErrDuplicateAgentID = errors.New("duplicate agent id")

// maxParallelManifests bounds concurrent manifest reads during LoadAll.
const maxParallelManifests = 8

// IsManifest reports whether path names an agent manifest file.
func IsManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ReadManifest parses and validates a single agent manifest.
func ReadManifest(path string) (agent.Definition, error) {
	var def agent.Definition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	if err := def.Validate(); err != nil {
		return def, fmt.Errorf("manifest %s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// ManifestPaths returns the manifest files in dir, sorted by name.
// A missing directory yields no paths.
func ManifestPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// ReadManifests parses every manifest in dir concurrently and returns the
// definitions in file name order. IDs must be unique across files.
func ReadManifests(ctx context.Context, dir string) ([]agent.Definition, []string, error) {
	paths, err := ManifestPaths(dir)
	if err != nil {
		return nil, nil, err
	}

	defs := make([]agent.Definition, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelManifests)
	for i, p := range paths {
		g.Go(func() error {
			def, err := ReadManifest(p)
			if err != nil {
				return err
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]string, len(defs))
	for i, d := range defs {
		if prev, ok := seen[d.ID]; ok {
			return nil, nil, fmt.Errorf("%w %q in %s and %s", ErrDuplicateAgentID, d.ID, filepath.Base(prev), filepath.Base(paths[i]))
		}
		seen[d.ID] = paths[i]
	}
	return defs, paths, nil
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAgentEventBuffer sets the event buffer size of agents the loader builds.
func WithAgentEventBuffer(n int) LoaderOption {
	return func(l *Loader) { l.eventBuffer = n }
}

// Loader builds agents from a manifest directory and keeps them in sync
// with it. It also pushes skills changes to running agents.
type Loader struct {
	dir         string
	factory     *agent.Factory
	skills      *skills.FileProvider
	target      *Orchestrator
	eventBuffer int

	// mu protects byPath.
	mu sync.Mutex
	// byPath maps a manifest path to the agent last built from it.
	byPath map[string]*agent.Agent
}

// NewLoader creates a loader that registers agents with target.
func NewLoader(dir string, factory *agent.Factory, provider *skills.FileProvider, target *Orchestrator, opts ...LoaderOption) *Loader {
	if provider == nil {
		provider = skills.NewFileProvider("")
	}
	l := &Loader{
		dir:         dir,
		factory:     factory,
		skills:      provider,
		target:      target,
		eventBuffer: 100,
		byPath:      make(map[string]*agent.Agent),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the manifest directory.
func (l *Loader) Dir() string {
	return l.dir
}

// LoadAll builds and registers every agent in the manifest directory, in
// file name order so that lookup tie-breaks are stable across runs.
func (l *Loader) LoadAll(ctx context.Context) ([]*agent.Agent, error) {
	defs, paths, err := ReadManifests(ctx, l.dir)
	if err != nil {
		return nil, err
	}
	agents := make([]*agent.Agent, 0, len(defs))
	for i, def := range defs {
		a, err := l.register(paths[i], def)
		if err != nil {
			return agents, err
		}
		agents = append(agents, a)
	}
	debugLog("[loader] loaded %d agents from %s", len(agents), l.dir)
	return agents, nil
}

// LoadFile builds the agent described by one manifest and registers it,
// replacing any agent with the same ID.
func (l *Loader) LoadFile(path string) (*agent.Agent, error) {
	def, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return l.register(path, def)
}

func (l *Loader) register(path string, def agent.Definition) (*agent.Agent, error) {
	s, err := l.skills.Load(def.Type)
	if err != nil {
		log.Printf("[loader] WARNING: %v; %s starts without skills", err, def.ID)
		s = nil
	}
	a, err := l.factory.Build(def, agent.WithSkills(s), agent.WithEventBuffer(l.eventBuffer))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filepath.Base(path), err)
	}

	l.target.Register(a)

	l.mu.Lock()
	prev := l.byPath[path]
	l.byPath[path] = a
	l.mu.Unlock()

	if prev != nil {
		if prev.ID() != a.ID() {
			l.retire(prev)
		}
		prev.Close()
	}
	return a, nil
}

// Unload takes the agent built from path offline. The registry entry stays
// so the agent can come back when the manifest reappears.
func (l *Loader) Unload(path string) {
	l.mu.Lock()
	a := l.byPath[path]
	l.mu.Unlock()
	if a == nil {
		return
	}
	l.retire(a)
	debugLog("[loader] %s removed, agent %s offline", filepath.Base(path), a.ID())
}

// retire marks an agent offline and updates the registry mirror at once,
// without waiting for the status event to be consumed.
func (l *Loader) retire(a *agent.Agent) {
	if err := a.SetOffline(); err != nil {
		log.Printf("[loader] WARNING: %v", err)
	}
	l.target.Registry().UpdateStatus(a.ID(), models.AgentStatusOffline)
}

// ReloadSkills rereads the skills of an agent type and applies them to
// every registered agent of that type.
func (l *Loader) ReloadSkills(agentType string) error {
	l.skills.Invalidate(agentType)
	s, err := l.skills.Load(agentType)
	if err != nil {
		return err
	}
	for _, e := range l.target.Registry().ByType(agentType) {
		e.Agent.SetSkills(s)
	}
	debugLog("[loader] reloaded skills for %s (%d never, %d always)", agentType, len(s.Never), len(s.Always))
	return nil
}

// Watch starts watching the manifest and skills directories. Setup errors
// are returned directly; afterwards the returned channel is closed when ctx
// is done or the watcher fails.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("create agents dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", l.dir, err)
	}

	skillsDir := l.skills.Dir()
	if skillsDir != "" && filepath.Clean(skillsDir) != filepath.Clean(l.dir) {
		if err := watcher.Add(skillsDir); err != nil {
			// Skills are optional; agents keep the rules they started with.
			log.Printf("[loader] skills dir %s not watched: %v", skillsDir, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.handle(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[loader] WARNING: watch error: %v", err)
			}
		}
	}()
	return done, nil
}

// handle reacts to a single filesystem event.
func (l *Loader) handle(event fsnotify.Event) {
	changed := event.Op&(fsnotify.Create|fsnotify.Write) != 0
	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
	dir := filepath.Clean(filepath.Dir(event.Name))

	switch {
	case IsManifest(event.Name) && dir == filepath.Clean(l.dir):
		if changed {
			if _, err := l.LoadFile(event.Name); err != nil {
				log.Printf("[loader] WARNING: %v", err)
			}
		} else if removed {
			l.Unload(event.Name)
		}
	case l.skills.Dir() != "" && dir == filepath.Clean(l.skills.Dir()):
		agentType, ok := skills.AgentTypeForPath(event.Name)
		if !ok || !(changed || removed) {
			return
		}
		if err := l.ReloadSkills(agentType); err != nil {
			log.Printf("[loader] WARNING: %v", err)
		}
	}
}

// Close closes every agent the loader built.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, a := range l.byPath {
		a.Close()
		delete(l.byPath, path)
	}
}
