package prompting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
	"github.com/rezoom-ai/promptgate/internal/prompting/secret"
)

func TestVersionNumbersAreMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "v1 {name}",
	})

	for i := 2; i <= 5; i++ {
		v, err := s.CreateVersion(ctx, created.ID, "content", "tester", "edit")
		if err != nil {
			t.Fatalf("create version: %v", err)
		}
		if v.Version != i {
			t.Errorf("version = %d, want %d", v.Version, i)
		}
	}
}

func TestConcurrentCreateVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "v1 {name}",
	})

	const writers = 16
	versions := make([]int, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.CreateVersion(ctx, created.ID,
				fmt.Sprintf("content from writer %d", i), "tester", "")
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
				return
			}
			versions[i] = v.Version
		}(i)
	}
	wg.Wait()

	// The initial version is 1; concurrent writers must land on
	// 2..writers+1 with no gaps and no repeats.
	seen := make(map[int]bool)
	for _, v := range versions {
		if v < 2 || v > writers+1 {
			t.Errorf("version %d out of range [2, %d]", v, writers+1)
		}
		if seen[v] {
			t.Errorf("version %d assigned to two writers", v)
		}
		seen[v] = true
	}

	maxV, err := s.versions.MaxVersion(ctx, created.ID)
	if err != nil {
		t.Fatalf("max version: %v", err)
	}
	if maxV != writers+1 {
		t.Errorf("max version = %d, want %d", maxV, writers+1)
	}
}

func TestListVersionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "first",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "second", "bob", "rework"); err != nil {
		t.Fatalf("create version: %v", err)
	}

	versions, err := s.ListVersions(ctx, created.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("len = %d, want 2", len(versions))
	}
	if versions[0].Version != 2 || versions[1].Version != 1 {
		t.Errorf("order = [%d, %d], want [2, 1]", versions[0].Version, versions[1].Version)
	}
	if versions[0].Author != "bob" || versions[1].Author != "tester" {
		t.Errorf("authors = [%q, %q], want [bob, tester]",
			versions[0].Author, versions[1].Author)
	}
}

func TestCreateVersionMirrorsOntoTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "Hello {name}",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "Hi {first} {last}", "tester", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	got, err := s.GetTemplate(ctx, Query{Scenario: "greeting"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Template != "Hi {first} {last}" {
		t.Errorf("template = %q, want mirrored content", got.Template)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if len(got.Variables) != 2 {
		t.Errorf("variables = %v, want [first last]", got.Variables)
	}
}

func TestRollbackRestoresExactContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	original := "Analyze {input} carefully"
	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "analyze", Scenario: "analysis", Template: original,
	})
	if _, err := s.CreateVersion(ctx, created.ID, "Completely different", "tester", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	rolled, err := s.Rollback(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled == nil || rolled.Template != original {
		t.Errorf("rollback content = %+v, want %q", rolled, original)
	}

	got, err := s.GetTemplate(ctx, Query{Scenario: "analysis"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Template != original {
		t.Errorf("template after rollback = %q, want %q", got.Template, original)
	}
	if got.Version != 1 {
		t.Errorf("version after rollback = %d, want 1", got.Version)
	}
}

func TestRollbackMissingVersionFailsSoft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "Hello",
	})

	rolled, err := s.Rollback(ctx, created.ID, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rolled != nil {
		t.Errorf("got %+v, want nil for missing rollback target", rolled)
	}
}

func TestActivateVersionSingleActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "first",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "second", "tester", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	v, err := s.ActivateVersion(ctx, created.ID, 2)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if v == nil || !v.IsActive {
		t.Fatalf("activated version = %+v, want IsActive", v)
	}

	versions, err := s.ListVersions(ctx, created.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, v := range versions {
		if v.IsActive {
			active++
			if v.Version != 2 {
				t.Errorf("active version = %d, want 2", v.Version)
			}
		}
	}
	if active != 1 {
		t.Errorf("active count = %d, want exactly 1", active)
	}
}

func TestActivateMissingVersionFailsSoft(t *testing.T) {
	s := newTestStore(t)

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "Hello",
	})

	v, err := s.ActivateVersion(context.Background(), created.ID, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("got %+v, want nil for missing activation target", v)
	}
}

func TestCompareVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "Hello {name}",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "Hi {name}", "bob", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	diff, err := s.CompareVersions(ctx, created.ID, 1, 2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	// Content and author differ; the variable set {name} is identical.
	if len(diff.Differences) != 2 {
		t.Errorf("differences = %v, want content and author entries", diff.Differences)
	}

	same, err := s.CompareVersions(ctx, created.ID, 1, 1)
	if err != nil {
		t.Fatalf("compare identical: %v", err)
	}
	if len(same.Differences) != 0 {
		t.Errorf("self-compare differences = %v, want none", same.Differences)
	}
}

func TestCompareVersionsMissingFailsHard(t *testing.T) {
	s := newTestStore(t)

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "Hello",
	})

	_, err := s.CompareVersions(context.Background(), created.ID, 1, 7)
	if !errors.Is(err, storage.ErrVersionNotFound) {
		t.Errorf("error = %v, want ErrVersionNotFound", err)
	}
}

func TestListVersionsForDisplayRedactsEncrypted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "secret", Scenario: "scoring", IsEncrypted: true,
		Template: "Score {profile}",
	})

	versions, err := s.ListVersionsForDisplay(ctx, created.ID)
	if err != nil {
		t.Fatalf("list for display: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("len = %d, want 1", len(versions))
	}
	if versions[0].Content != secret.Redacted {
		t.Errorf("content = %q, want %q", versions[0].Content, secret.Redacted)
	}

	// The full listing still decrypts.
	full, err := s.ListVersions(ctx, created.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if full[0].Content != "Score {profile}" {
		t.Errorf("content = %q, want decrypted", full[0].Content)
	}
}

func TestEncryptedVersionRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "secret", Scenario: "scoring", IsEncrypted: true,
		Template: "Score {profile} strictly",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "Score {profile} leniently", "tester", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	rolled, err := s.Rollback(ctx, created.ID, 1)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.Template != "Score {profile} strictly" {
		t.Errorf("rollback content = %q, want original plaintext", rolled.Template)
	}
}

func TestCreateABTest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "first",
	})
	if _, err := s.CreateVersion(ctx, created.ID, "second", "tester", ""); err != nil {
		t.Fatalf("create version: %v", err)
	}

	test, err := s.CreateABTest(ctx, created.ID, 1, 2, "tone", "formal vs casual")
	if err != nil {
		t.Fatalf("create ab test: %v", err)
	}
	if test.TestID == "" {
		t.Error("test id not assigned")
	}

	got, err := s.GetABTest(ctx, test.TestID)
	if err != nil {
		t.Fatalf("get ab test: %v", err)
	}
	if got.VersionA != 1 || got.VersionB != 2 || got.TestName != "tone" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateABTestMissingVersion(t *testing.T) {
	s := newTestStore(t)

	created := mustCreate(t, s, &domain.PromptTemplate{
		Name: "greet", Scenario: "greeting", Template: "only one version",
	})

	_, err := s.CreateABTest(context.Background(), created.ID, 1, 2, "tone", "")
	if !errors.Is(err, storage.ErrVersionNotFound) {
		t.Errorf("error = %v, want ErrVersionNotFound", err)
	}
}
