package gitindex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
)

// initRepo creates a repository with the given paths staged.
func initRepo(t *testing.T, staged []string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	for _, rel := range staged {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(abs, []byte("content\n"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(rel); err != nil {
			t.Fatalf("Add(%s): %v", rel, err)
		}
	}

	return dir
}

func TestIndexReader_Read(t *testing.T) {
	dir := initRepo(t, []string{"a.js", "src/app.js", "docs/readme.md"})

	snap, err := NewIndexReader().Read(dir)
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}

	if len(snap.Files) != 3 {
		t.Fatalf("files = %v, want 3 entries", snap.Files)
	}
	wantFiles := map[string]bool{"a.js": true, "src/app.js": true, "docs/readme.md": true}
	for _, f := range snap.Files {
		if !wantFiles[f] {
			t.Errorf("unexpected staged file %q", f)
		}
	}

	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(snap.RootDir)
	if gotRoot != wantRoot {
		t.Errorf("RootDir = %s, want %s", snap.RootDir, dir)
	}
}

func TestIndexReader_Read_FromSubdirectory(t *testing.T) {
	dir := initRepo(t, []string{"src/app.js"})

	sub := filepath.Join(dir, "src")
	snap, err := NewIndexReader().Read(sub)
	if err != nil {
		t.Fatalf("Read() from subdirectory = %v", err)
	}

	if len(snap.Files) != 1 || snap.Files[0] != "src/app.js" {
		t.Fatalf("files = %v, want [src/app.js]", snap.Files)
	}

	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(snap.RootDir)
	if gotRoot != wantRoot {
		t.Errorf("RootDir = %s, want the work tree root %s", snap.RootDir, dir)
	}
}

func TestIndexReader_Read_EmptyIndex(t *testing.T) {
	dir := initRepo(t, nil)

	_, err := NewIndexReader().Read(dir)
	if !errors.Is(err, ErrNoStagedFiles) {
		t.Fatalf("Read() = %v, want ErrNoStagedFiles", err)
	}
	want := "No staged files found. Run 'git add' to stage files."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIndexReader_Read_NotARepository(t *testing.T) {
	dir := t.TempDir()

	_, err := NewIndexReader().Read(dir)
	if err == nil {
		t.Fatal("Read() = nil, want error")
	}

	var notRepo *NotRepositoryError
	if !errors.As(err, &notRepo) {
		t.Fatalf("error type = %T, want *NotRepositoryError", err)
	}
	if notRepo.Dir != dir {
		t.Errorf("Dir = %s, want %s", notRepo.Dir, dir)
	}
	if !strings.HasPrefix(err.Error(), "Not a git repository. Current directory: ") {
		t.Errorf("Error() = %q, want the not-a-repository wording", err.Error())
	}
}
