package project

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/davrk/stint/internal/models"
	"github.com/davrk/stint/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Store {
	t.Helper()
	tmpDir := t.TempDir()
	st, err := storage.New(filepath.Join(tmpDir, "test.db"), filepath.Join(tmpDir, "mirror"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(newTestStorage(t))
	if err != nil {
		t.Fatalf("Failed to open project store: %v", err)
	}
	// Start from a clean slate instead of the seeded sample.
	if err := s.ImportProjects(models.ProjectMap{}); err != nil {
		t.Fatalf("Failed to clear sample data: %v", err)
	}
	return s
}

func TestSeedsSampleOnEmptyStorage(t *testing.T) {
	s, err := Open(newTestStorage(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	p := s.Get("Sample Project")
	if p == nil {
		t.Fatal("Expected a seeded sample project")
	}
	if len(p.Commits) == 0 {
		t.Error("Sample project should have commits")
	}
	if p.Time != p.CommitSum() {
		t.Errorf("Sample aggregate %d != commit sum %d", p.Time, p.CommitSum())
	}
}

func TestAddProject(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddProject("A"); err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}

	p := s.Get("A")
	if p == nil {
		t.Fatal("Project not found after add")
	}
	if p.Time != 0 || len(p.Commits) != 0 {
		t.Errorf("New project should be empty, got time=%d commits=%d", p.Time, len(p.Commits))
	}
	if p.CreatedAt == 0 || p.UpdatedAt == 0 {
		t.Error("Timestamps should be set")
	}
}

func TestAddProjectDuplicate(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddProject("A"); err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}
	err := s.AddProject("A")
	if !errors.Is(err, ErrProjectExists) {
		t.Fatalf("Expected ErrProjectExists, got %v", err)
	}
	if len(s.Export()) != 1 {
		t.Errorf("Expected exactly one project, got %d", len(s.Export()))
	}
}

func TestAddProjectEmptyName(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddProject(""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Expected ErrEmptyName, got %v", err)
	}
}

func TestRenameKeepsIdentifier(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	if err := s.RenameProject("A", "Alpha"); err != nil {
		t.Fatalf("RenameProject failed: %v", err)
	}

	p := s.Get("A")
	if p == nil {
		t.Fatal("Project should still be addressable by its original id")
	}
	if p.Name != "Alpha" {
		t.Errorf("Expected name Alpha, got %s", p.Name)
	}
}

func TestRenameUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.RenameProject("nope", "X"); err != nil {
		t.Fatalf("Rename of unknown project should be a no-op, got %v", err)
	}
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	if err := s.DeleteProject("A"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if s.Get("A") != nil {
		t.Error("Project should be gone")
	}
	if err := s.DeleteProject("A"); err != nil {
		t.Fatalf("Deleting a missing project should be a no-op, got %v", err)
	}
}

func TestCommitTime(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	at1 := models.Millis(1000)
	at2 := models.Millis(2000)
	if err := s.CommitTime("A", 25, &at1); err != nil {
		t.Fatalf("CommitTime failed: %v", err)
	}
	if err := s.CommitTime("A", 10, &at2); err != nil {
		t.Fatalf("CommitTime failed: %v", err)
	}

	p := s.Get("A")
	if p.Time != 35 {
		t.Errorf("Expected aggregate 35, got %d", p.Time)
	}
	// Newest first.
	if p.Commits[0].CommittedAt != at2 || p.Commits[1].CommittedAt != at1 {
		t.Errorf("Commits not sorted newest-first: %+v", p.Commits)
	}
}

func TestCommitTimeNormalizesFractions(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	s.CommitTime("A", 1.4, nil)
	s.CommitTime("A", 2.6, nil)

	p := s.Get("A")
	if p.Time != 4 {
		t.Errorf("Expected 1+3=4 minutes after normalization, got %d", p.Time)
	}
	if p.Time != p.CommitSum() {
		t.Errorf("Aggregate %d != commit sum %d", p.Time, p.CommitSum())
	}
}

func TestCommitTimeUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.CommitTime("nope", 10, nil); err != nil {
		t.Fatalf("Commit to unknown project should be a no-op, got %v", err)
	}
}

func TestEditProjectSettingsZeroIsProvided(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	budget := int64(0)
	if err := s.EditProjectSettings("A", &budget, nil); err != nil {
		t.Fatalf("EditProjectSettings failed: %v", err)
	}

	p := s.Get("A")
	if p.TimeBudget == nil || *p.TimeBudget != 0 {
		t.Errorf("A zero budget must be settable, got %v", p.TimeBudget)
	}
	if p.Deadline != nil {
		t.Error("Deadline was not provided and must stay unset")
	}
}

func TestEditCommitRecomputesAggregate(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	at1 := models.Millis(1000)
	at2 := models.Millis(2000)
	s.CommitTime("A", 25, &at1)
	s.CommitTime("A", 10, &at2)

	if err := s.EditCommit("A", at1, 5, nil); err != nil {
		t.Fatalf("EditCommit failed: %v", err)
	}

	p := s.Get("A")
	if p.Time != 15 {
		t.Errorf("Expected recomputed aggregate 15, got %d", p.Time)
	}
	if p.Time != p.CommitSum() {
		t.Errorf("Aggregate %d != commit sum %d", p.Time, p.CommitSum())
	}
}

func TestEditCommitMovesTimestamp(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	at1 := models.Millis(1000)
	at2 := models.Millis(2000)
	s.CommitTime("A", 25, &at1)
	s.CommitTime("A", 10, &at2)

	moved := models.Millis(3000)
	if err := s.EditCommit("A", at1, 25, &moved); err != nil {
		t.Fatalf("EditCommit failed: %v", err)
	}

	p := s.Get("A")
	if p.Commits[0].CommittedAt != moved {
		t.Errorf("Moved commit should sort first, got %+v", p.Commits)
	}
}

func TestEditCommitNotFound(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	if err := s.EditCommit("A", 12345, 5, nil); !errors.Is(err, ErrCommitNotFound) {
		t.Fatalf("Expected ErrCommitNotFound, got %v", err)
	}
	if err := s.EditCommit("nope", 12345, 5, nil); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("Expected ErrProjectNotFound, got %v", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")
	s.AddProject("B")
	at := models.Millis(5000)
	s.CommitTime("A", 30, &at)
	budget := int64(120)
	s.EditProjectSettings("B", &budget, nil)

	doc := s.Export()

	if err := s.ImportProjects(doc); err != nil {
		t.Fatalf("ImportProjects failed: %v", err)
	}
	again := s.Export()
	if !reflect.DeepEqual(doc, again) {
		t.Errorf("Round trip mismatch:\nwant %+v\ngot  %+v", doc, again)
	}
}

func TestImportInvalidKeepsState(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	if err := s.ImportJSON([]byte(`{broken`)); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("Expected ErrInvalidImport, got %v", err)
	}
	if err := s.ImportProjects(models.ProjectMap{"x": nil}); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("Expected ErrInvalidImport for null entry, got %v", err)
	}
	if s.Get("A") == nil {
		t.Error("Previous state must survive a failed import")
	}
}

func TestExportIsDeepCopy(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")
	s.CommitTime("A", 10, nil)

	doc := s.Export()
	doc["A"].Time = 999
	doc["A"].Commits[0].Amount = 999

	p := s.Get("A")
	if p.Time != 10 || p.Commits[0].Amount != 10 {
		t.Error("Mutating an export must not affect the store")
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)

	fired := 0
	s.Subscribe(func() { fired++ })

	s.AddProject("A")
	s.CommitTime("A", 10, nil)

	if fired != 2 {
		t.Errorf("Expected 2 notifications, got %d", fired)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	mirrorDir := filepath.Join(tmpDir, "mirror")

	st, err := storage.New(dbPath, mirrorDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	s, err := Open(st)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.ImportProjects(models.ProjectMap{})
	s.AddProject("A")
	s.CommitTime("A", 42, nil)
	st.Close()

	st2, err := storage.New(dbPath, mirrorDir)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer st2.Close()
	s2, err := Open(st2)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	p := s2.Get("A")
	if p == nil || p.Time != 42 {
		t.Fatalf("Expected persisted project with 42 minutes, got %+v", p)
	}
}

func TestAggregateInvariantUnderMixedOps(t *testing.T) {
	s := newTestStore(t)
	s.AddProject("A")

	ats := []models.Millis{100, 200, 300, 400}
	for i, at := range ats {
		a := at
		s.CommitTime("A", float64(10+i), &a)
	}
	s.EditCommit("A", 200, 1, nil)
	s.EditCommit("A", 400, 99.6, nil)
	moved := models.Millis(500)
	s.EditCommit("A", 100, 10, &moved)

	p := s.Get("A")
	if p.Time != p.CommitSum() {
		t.Errorf("Invariant violated: aggregate %d != sum %d", p.Time, p.CommitSum())
	}
}
