// Package gitinfo resolves the revision of the source tree an export ran
// over, for stamping reports. Resolution is best-effort: a tree outside any
// repository simply yields no revision.
package gitinfo

import (
	"github.com/go-git/go-git/v5"
)

// Head returns the HEAD commit hash of the repository enclosing dir, or an
// empty string when dir is not inside a working tree.
func Head(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// Short returns the conventional 12-character short form of Head.
func Short(dir string) string {
	h := Head(dir)
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
