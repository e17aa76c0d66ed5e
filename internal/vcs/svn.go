package vcs

import (
	"context"
	"fmt"
	"strings"
)

type svnDriver struct{}

func (svnDriver) Name() string   { return "svn" }
func (svnDriver) binary() string { return "svn" }

// Clone checks out repoURL at rev (an svn revision number, or "HEAD" when
// empty) directly, since svn has no separate clone-then-checkout step.
func (svnDriver) Clone(ctx context.Context, repoURL, rev, destDir string) error {
	revArg := "HEAD"
	if rev != "" {
		revArg = rev
	}
	_, err := runCommand(ctx, "", "svn", "checkout", "--quiet", "-r", revArg, repoURL, destDir)
	return err
}

func (svnDriver) ResolveRevision(ctx context.Context, destDir string) (string, error) {
	out, err := runCommand(ctx, destDir, "svn", "info")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "Revision:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Revision:")), nil
		}
	}
	return "", fmt.Errorf("could not parse svn info output")
}
