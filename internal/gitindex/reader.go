package gitindex

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

//go:generate mockgen -destination=mocks/mock_reader.go -package=mocks github.com/JiLiZART/fast-staged/internal/gitindex Reader

// NotRepositoryError reports that a directory is not inside a git work
// tree.
type NotRepositoryError struct {
	Dir string
}

func (e *NotRepositoryError) Error() string {
	return fmt.Sprintf("Not a git repository. Current directory: %s", e.Dir)
}

// ErrNoStagedFiles is returned when the repository index holds no entries.
var ErrNoStagedFiles = errors.New("No staged files found. Run 'git add' to stage files.")

// Snapshot is the staged view of a repository: entry paths relative to the
// work tree root, plus the root itself so commands can run there.
type Snapshot struct {
	RootDir string
	Files   []string
}

// Reader enumerates the staged files of the repository containing a
// directory.
type Reader interface {
	Read(dir string) (*Snapshot, error)
}

// IndexReader is the Reader backed by the real git index.
type IndexReader struct{}

// NewIndexReader returns a Reader over the on-disk index.
func NewIndexReader() *IndexReader { return &IndexReader{} }

// Read opens the repository containing dir, walking up the tree the way
// git itself does, and lists every index entry. The index is the source of
// truth for "staged": a path counts exactly when it has an entry, and an
// empty index means there is nothing to run against.
func (r *IndexReader) Read(dir string) (*Snapshot, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, &NotRepositoryError{Dir: dir}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("Git error: %v", err)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("Git error: %v", err)
	}

	files := make([]string, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		files = append(files, entry.Name)
	}
	if len(files) == 0 {
		return nil, ErrNoStagedFiles
	}

	return &Snapshot{
		RootDir: wt.Filesystem.Root(),
		Files:   files,
	}, nil
}
