// Package git inspects a local checkout to find the GitHub repository and
// commit a build should run against.
package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
)

// DetectRepository reads the git config of the checkout at dir and returns
// the repository of its origin remote.
func DetectRepository(dir string) (domain.Repository, error) {
	gitDir, err := findGitDir(dir)
	if err != nil {
		return domain.Repository{}, err
	}
	f, err := os.Open(filepath.Join(commonDir(gitDir), "config"))
	if err != nil {
		return domain.Repository{}, fmt.Errorf("could not open git config: %w", err)
	}
	defer f.Close()

	var inOrigin bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "url" {
			return ParseRemoteURL(strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Repository{}, fmt.Errorf("reading git config: %w", err)
	}
	return domain.Repository{}, errors.New("no origin remote found in git config")
}

// ParseRemoteURL parses a GitHub remote URL in HTTPS
// (https://github.com/owner/repo.git), scp-like SSH (git@github.com:owner/repo.git)
// or ssh:// form. RemoteURL keeps the input unchanged.
func ParseRemoteURL(rawURL string) (domain.Repository, error) {
	normalized := strings.TrimSuffix(strings.TrimSuffix(rawURL, "/"), ".git")

	var path string
	switch {
	case strings.HasPrefix(normalized, "git@"):
		_, p, ok := strings.Cut(strings.TrimPrefix(normalized, "git@"), ":")
		if !ok {
			return domain.Repository{}, fmt.Errorf("invalid SSH remote URL: %s", rawURL)
		}
		path = p
	case strings.HasPrefix(normalized, "ssh://"),
		strings.HasPrefix(normalized, "https://"),
		strings.HasPrefix(normalized, "http://"):
		_, rest, _ := strings.Cut(normalized, "://")
		_, p, ok := strings.Cut(rest, "/")
		if !ok {
			return domain.Repository{}, fmt.Errorf("invalid remote URL: %s", rawURL)
		}
		path = p
	default:
		return domain.Repository{}, fmt.Errorf("unsupported remote URL format: %s", rawURL)
	}

	owner, name, ok := strings.Cut(path, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return domain.Repository{}, fmt.Errorf("remote URL is not an owner/repo path: %s", rawURL)
	}
	return domain.Repository{Owner: owner, Name: name, RemoteURL: rawURL}, nil
}

// findGitDir returns the git directory of the checkout at dir. It follows the
// "gitdir:" indirection used by worktrees and submodules.
func findGitDir(dir string) (string, error) {
	dotGit := filepath.Join(dir, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", fmt.Errorf("not a git checkout: %w", err)
	}
	if info.IsDir() {
		return dotGit, nil
	}
	content, err := os.ReadFile(dotGit)
	if err != nil {
		return "", fmt.Errorf("reading .git file: %w", err)
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(content)), "gitdir:")
	if !ok {
		return "", fmt.Errorf("malformed .git file in %s", dir)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, nil
}

// commonDir returns the directory holding config, refs and packed-refs, which
// differs from gitDir for linked worktrees.
func commonDir(gitDir string) string {
	content, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	common := strings.TrimSpace(string(content))
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitDir, common)
	}
	return common
}
