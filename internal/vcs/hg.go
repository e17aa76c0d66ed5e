package vcs

import (
	"context"
	"strings"
)

type hgDriver struct{}

func (hgDriver) Name() string   { return "hg" }
func (hgDriver) binary() string { return "hg" }

func (hgDriver) Clone(ctx context.Context, repoURL, rev, destDir string) error {
	if _, err := runCommand(ctx, "", "hg", "clone", "--quiet", repoURL, destDir); err != nil {
		return err
	}
	if rev == "" {
		return nil
	}
	_, err := runCommand(ctx, destDir, "hg", "update", "--quiet", "--rev", rev)
	return err
}

func (hgDriver) ResolveRevision(ctx context.Context, destDir string) (string, error) {
	out, err := runCommand(ctx, destDir, "hg", "id", "-i")
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSpace(string(out)), "+"), nil
}
