// Package project implements the project store: CRUD over projects and
// append/amend over their commit histories, with every mutation persisted
// through the storage layer before it becomes observable.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/davrk/stint/internal/models"
	"github.com/davrk/stint/internal/storage"
)

// DocumentKey is the storage key of the projects document.
const DocumentKey = "projects"

// Sentinel errors for user-input failures.
var (
	ErrEmptyName       = errors.New("project name must not be empty")
	ErrProjectExists   = errors.New("a project with this name already exists")
	ErrProjectNotFound = errors.New("project not found")
	ErrCommitNotFound  = errors.New("commit not found on project")
	ErrInvalidImport   = errors.New("import payload is not a valid projects document")
)

// Store owns the durable record of projects and their commit histories. It is
// the single source of truth for how much time has been logged.
type Store struct {
	mu       sync.Mutex
	storage  *storage.Store
	projects models.ProjectMap
	subs     []func()
}

// Open loads the projects document from storage, seeding a sample project
// when no usable copy exists in either tier.
func Open(st *storage.Store) (*Store, error) {
	s := &Store{storage: st}

	var projects models.ProjectMap
	found, err := st.Load(DocumentKey, &projects)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if !found || projects == nil {
		projects = SampleProjects()
		if err := st.SaveMirrored(DocumentKey, projects); err != nil {
			return nil, fmt.Errorf("seed projects: %w", err)
		}
		log.Printf("project: no stored projects, seeded sample data")
	}
	s.projects = projects
	return s, nil
}

// Subscribe registers fn to run after every successful mutation. Subscribers
// must not mutate the store from inside the callback.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// persist writes the given document, swaps it in and notifies subscribers.
// Persistence happens before the in-memory swap so a crash mid-mutation can
// lose at most the mutation itself, never previously saved state.
func (s *Store) persist(next models.ProjectMap) error {
	if err := s.storage.SaveMirrored(DocumentKey, next); err != nil {
		return err
	}
	s.projects = next
	for _, fn := range s.subs {
		fn()
	}
	return nil
}

// AddProject creates a new empty project. The name is also the identifier and
// must be unique.
func (s *Store) AddProject(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return ErrEmptyName
	}
	if _, ok := s.projects[name]; ok {
		return fmt.Errorf("%w: %q", ErrProjectExists, name)
	}

	now := models.Now()
	next := s.projects.Clone()
	next[name] = &models.Project{
		Name:      name,
		Time:      0,
		Commits:   []models.Commit{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.persist(next)
}

// RenameProject changes the display name of a project. The identifier is not
// re-keyed. Unknown ids are logged no-ops.
func (s *Store) RenameProject(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		log.Printf("project: rename of unknown project %q ignored", id)
		return nil
	}

	next := s.projects.Clone()
	next[id].Name = name
	next[id].UpdatedAt = models.Now()
	return s.persist(next)
}

// DeleteProject removes a project and all of its commits. Unknown ids are
// no-ops.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return nil
	}

	next := s.projects.Clone()
	delete(next, id)
	return s.persist(next)
}

// CommitTime appends a commit of amount minutes to the project. A nil
// timestamp commits at the current time. Fractional amounts are normalized to
// whole minutes before accumulation so the aggregate never drifts. Unknown
// ids are logged no-ops.
func (s *Store) CommitTime(id string, amount float64, at *models.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		log.Printf("project: commit to unknown project %q ignored", id)
		return nil
	}

	now := models.Now()
	committedAt := now
	if at != nil {
		committedAt = *at
	}
	minutes := models.NormalizeMinutes(amount)

	next := s.projects.Clone()
	p := next[id]
	p.Commits = append(p.Commits, models.Commit{CommittedAt: committedAt, Amount: minutes})
	p.SortCommits()
	p.Time += minutes
	p.UpdatedAt = now
	return s.persist(next)
}

// EditProjectSettings updates the optional time budget and deadline. A nil
// pointer is the only "not provided" marker; zero is a settable value.
func (s *Store) EditProjectSettings(id string, timeBudget *int64, deadline *models.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		log.Printf("project: settings edit of unknown project %q ignored", id)
		return nil
	}

	next := s.projects.Clone()
	p := next[id]
	if timeBudget != nil {
		v := *timeBudget
		p.TimeBudget = &v
	}
	if deadline != nil {
		v := *deadline
		p.Deadline = &v
	}
	p.UpdatedAt = models.Now()
	return s.persist(next)
}

// EditCommit rewrites the amount and optionally the timestamp of the commit
// identified by committedAt. The aggregate is recomputed from the full commit
// list rather than patched incrementally, so the invariant holds after any
// sequence of edits.
func (s *Store) EditCommit(id string, committedAt models.Millis, amount float64, newCommittedAt *models.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		log.Printf("project: commit edit on unknown project %q ignored", id)
		return fmt.Errorf("%w: %q", ErrProjectNotFound, id)
	}

	idx := -1
	for i, c := range p.Commits {
		if c.CommittedAt == committedAt {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Printf("project: commit %d not found on project %q", committedAt, id)
		return ErrCommitNotFound
	}

	next := s.projects.Clone()
	p = next[id]
	p.Commits[idx].Amount = models.NormalizeMinutes(amount)
	if newCommittedAt != nil {
		p.Commits[idx].CommittedAt = *newCommittedAt
	}
	p.SortCommits()
	p.Time = p.CommitSum()
	p.UpdatedAt = models.Now()
	return s.persist(next)
}

// ImportProjects replaces the whole collection with the given document. The
// payload is checked for structural shape only; on validation failure the
// previous state is retained untouched.
func (s *Store) ImportProjects(doc models.ProjectMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc == nil {
		return ErrInvalidImport
	}
	for id, p := range doc {
		if p == nil {
			return fmt.Errorf("%w: entry %q is null", ErrInvalidImport, id)
		}
	}

	return s.persist(doc.Clone())
}

// ImportJSON decodes and imports a raw export document.
func (s *Store) ImportJSON(data []byte) error {
	var doc models.ProjectMap
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return s.ImportProjects(doc)
}

// Export returns a deep copy of the projects document. Importing an exported
// document round-trips to a deep-equal collection.
func (s *Store) Export() models.ProjectMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects.Clone()
}

// Get returns a copy of one project, or nil if absent.
func (s *Store) Get(id string) *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Has reports whether a project exists.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	return ok
}
