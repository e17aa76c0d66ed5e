package vcs

import (
	"context"
	"strings"
)

type gitDriver struct{}

func (gitDriver) Name() string   { return "git" }
func (gitDriver) binary() string { return "git" }

func (gitDriver) Clone(ctx context.Context, repoURL, rev, destDir string) error {
	if _, err := runCommand(ctx, "", "git", "clone", "--quiet", repoURL, destDir); err != nil {
		return err
	}
	if rev == "" {
		return nil
	}
	_, err := runCommand(ctx, destDir, "git", "checkout", "--quiet", rev)
	return err
}

func (gitDriver) ResolveRevision(ctx context.Context, destDir string) (string, error) {
	out, err := runCommand(ctx, destDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
