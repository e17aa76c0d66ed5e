package vcs

import (
	"context"
	"strings"
)

type bzrDriver struct{}

func (bzrDriver) Name() string   { return "bzr" }
func (bzrDriver) binary() string { return "bzr" }

func (bzrDriver) Clone(ctx context.Context, repoURL, rev, destDir string) error {
	args := []string{"branch", "--quiet"}
	if rev != "" {
		args = append(args, "-r", rev)
	}
	args = append(args, repoURL, destDir)
	_, err := runCommand(ctx, "", "bzr", args...)
	return err
}

func (bzrDriver) ResolveRevision(ctx context.Context, destDir string) (string, error) {
	out, err := runCommand(ctx, destDir, "bzr", "revno")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
