package prep

import (
	"path"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/repository"
	"github.com/notargets/meshtvprep/types"
)

// DirVisitor is called once per visited directory of an input file
type DirVisitor func(file, dirPath string, dir *container.Dir) error

// DomainFilter selects the domains a walk is interested in
type DomainFilter func(kind types.EntityKind, entity string, index int) bool

// IterateDirs visits dirPath of file and recurses into every subdirectory
// holding a domain that wanted accepts. Subtrees without one are skipped
// without being read.
func IterateDirs(repo *repository.Repository, file, dirPath string, wanted DomainFilter, visit DirVisitor) error {
	if !repo.ContainsDomain(file, dirPath, wanted) {
		return nil
	}
	dir, err := repo.Dir(file, dirPath)
	if err != nil {
		return ioErr(err)
	}
	if err = visit(file, dirPath, dir); err != nil {
		return err
	}
	for _, sub := range dir.SubdirNames() {
		if err = IterateDirs(repo, file, path.Join(dirPath, sub), wanted, visit); err != nil {
			return err
		}
	}
	return nil
}
