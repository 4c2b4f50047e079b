package domain

import (
	"fmt"
	"strings"
)

// RepoID identifies a repository as an owner plus a repo path.
type RepoID struct {
	Owner string
	Repo  string
}

// ParseRepoID validates an "owner/repo" string. The owner is the text
// before the first separator; the repo is the remainder and may itself
// contain separators.
func ParseRepoID(s string) (RepoID, error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok {
		return RepoID{}, fmt.Errorf("repo id must be in owner/repo format: %q", s)
	}
	return RepoID{Owner: owner, Repo: repo}, nil
}

// String returns the "owner/repo" form.
func (r RepoID) String() string { return r.Owner + "/" + r.Repo }

// PrParams are the inputs for opening a pull request.
type PrParams struct {
	Title      string
	Body       string
	BaseBranch string
	HeadBranch string
	Labels     []string
}

// PrResult describes a pull request returned by the code host.
type PrResult struct {
	Number  int
	URL     string
	HTMLURL string
	State   string
}
