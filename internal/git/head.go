package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRefNotFound is returned when HEAD points to a branch with no commit.
var ErrRefNotFound = errors.New("ref not found")

// ResolveHead returns the commit SHA checked out at dir. It reads HEAD and
// follows a symbolic ref through loose refs and packed-refs.
func ResolveHead(dir string) (string, error) {
	gitDir, err := findGitDir(dir)
	if err != nil {
		return "", err
	}
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	value := strings.TrimSpace(string(head))
	ref, symbolic := strings.CutPrefix(value, "ref:")
	if !symbolic {
		if !isSHA(value) {
			return "", fmt.Errorf("malformed detached HEAD %q", value)
		}
		return value, nil
	}
	return resolveRef(gitDir, strings.TrimSpace(ref))
}

func resolveRef(gitDir, ref string) (string, error) {
	// Per-worktree refs live in gitDir, shared ones in the common dir.
	for _, dir := range []string{gitDir, commonDir(gitDir)} {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
		if err == nil {
			sha := strings.TrimSpace(string(content))
			if !isSHA(sha) {
				return "", fmt.Errorf("malformed ref %s: %q", ref, sha)
			}
			return sha, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading ref %s: %w", ref, err)
		}
	}
	return packedRef(commonDir(gitDir), ref)
}

func packedRef(dir, ref string) (string, error) {
	f, err := os.Open(filepath.Join(dir, "packed-refs"))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("opening packed-refs: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		// Comments and peeled tag lines.
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		sha, name, ok := strings.Cut(line, " ")
		if ok && name == ref && isSHA(sha) {
			return sha, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading packed-refs: %w", err)
	}
	return "", fmt.Errorf("%w: %s", ErrRefNotFound, ref)
}

func isSHA(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
