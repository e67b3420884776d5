package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/retry"
)

const (
	defaultAPIURL    = "https://api.github.com"
	defaultRawURL    = "https://raw.githubusercontent.com"
	defaultCheckName = "ontolo-ci"
	// maxOutputText is the limit GitHub applies to check-run output summary and text.
	maxOutputText = 65535
)

// TokenSource issues installation tokens per repository owner.
type TokenSource interface {
	CredentialFor(ctx context.Context, owner string) (domain.InstallationCredential, error)
}

// Adapter implements domain.RepositoryProvider for GitHub.
type Adapter struct {
	tokens    TokenSource
	apiURL    string
	rawURL    string
	checkName string
	client    *http.Client
	policy    retry.Policy
	logger    *zap.Logger

	mu        sync.Mutex
	completed map[string]string
}

// Ensure Adapter fully implements domain.RepositoryProvider.
var _ domain.RepositoryProvider = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPIURL overrides the REST API root, for tests or GitHub Enterprise.
func WithAPIURL(u string) Option {
	return func(a *Adapter) {
		if u != "" {
			a.apiURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithRawURL overrides the raw content root.
func WithRawURL(u string) Option {
	return func(a *Adapter) {
		if u != "" {
			a.rawURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithCheckName sets the name shown for created check runs.
func WithCheckName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.checkName = name
		}
	}
}

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithRetryPolicy sets the retry policy applied to every request.
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Adapter) { a.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates a GitHub adapter authenticating check-run calls with tokens.
func NewAdapter(tokens TokenSource, opts ...Option) *Adapter {
	a := &Adapter{
		tokens:    tokens,
		apiURL:    defaultAPIURL,
		rawURL:    defaultRawURL,
		checkName: defaultCheckName,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    zap.NewNop(),
		completed: make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ListTestCases resolves the manifest at commit and materializes every entry.
func (a *Adapter) ListTestCases(ctx context.Context, repo domain.Repository, commit string) ([]domain.TestCase, error) {
	cfg, manifest, err := a.Resolve(ctx, repo, commit)
	if err != nil {
		return nil, err
	}
	return a.Materialize(ctx, repo, commit, cfg, manifest)
}

// Resolve fetches .oci.yml and the manifest it points to. Every path the
// manifest declares is checked before any test case file is fetched.
func (a *Adapter) Resolve(ctx context.Context, repo domain.Repository, commit string) (domain.RepositoryConfiguration, domain.Manifest, error) {
	raw, err := a.fetchRaw(ctx, repo, commit, domain.ConfigFileName)
	if err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, err
	}
	var cfg domain.RepositoryConfiguration
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, domain.ConfigFileName, err)
	}
	if err := validateConfiguration(cfg); err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, domain.ConfigFileName, err)
	}
	manifestPath, err := repoPath(cfg.ManifestPath)
	if err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, domain.ConfigFileName, fmt.Errorf("manifestPath: %w", err))
	}

	raw, err = a.fetchRaw(ctx, repo, commit, manifestPath)
	if err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, err
	}
	var entries []*domain.ManifestEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, cfg.ManifestPath, err)
	}
	if entries == nil {
		return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, cfg.ManifestPath, fmt.Errorf("manifest must be a JSON array"))
	}
	manifest := domain.Manifest{Entries: make([]domain.ManifestEntry, 0, len(entries))}
	for i, e := range entries {
		if e == nil {
			return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, cfg.ManifestPath, fmt.Errorf("entry %d is null", i))
		}
		if _, err := entryFiles(cfg, *e); err != nil {
			return domain.RepositoryConfiguration{}, domain.Manifest{}, domain.NewError(domain.ErrManifestParse, cfg.ManifestPath, fmt.Errorf("entry %d: %w", i, err))
		}
		manifest.Entries = append(manifest.Entries, *e)
	}

	a.logger.Debug("manifest resolved",
		zap.Stringer("repo", repo),
		zap.String("commit", commit),
		zap.Int("entries", manifest.Len()))
	return cfg, manifest, nil
}

// Materialize fetches the files of every entry in manifest order. The first
// missing or empty file aborts the whole materialization.
func (a *Adapter) Materialize(ctx context.Context, repo domain.Repository, commit string, cfg domain.RepositoryConfiguration, manifest domain.Manifest) ([]domain.TestCase, error) {
	cases := make([]domain.TestCase, 0, manifest.Len())
	for i, entry := range manifest.Entries {
		paths, err := entryFiles(cfg, entry)
		if err != nil {
			return nil, domain.NewError(domain.ErrManifestParse, cfg.ManifestPath, fmt.Errorf("entry %d: %w", i, err))
		}
		tc := domain.TestCase{Name: entry.Name}
		dst := [...]*string{&tc.Ontology, &tc.Instances, &tc.Schema, &tc.ProducedShapeMap, &tc.ExpectedShapeMap}
		for j, p := range paths {
			content, err := a.fetchRaw(ctx, repo, commit, p)
			if err != nil {
				return nil, fmt.Errorf("test case %q: %w", entry.Name, err)
			}
			*dst[j] = content
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func validateConfiguration(cfg domain.RepositoryConfiguration) error {
	for _, f := range []struct{ name, value string }{
		{"ontologyFolder", cfg.OntologyFolder},
		{"testFolder", cfg.TestFolder},
		{"manifestPath", cfg.ManifestPath},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

// entryFiles returns the repository paths of the ontology, instances, schema,
// produced and expected shape map files of entry.
func entryFiles(cfg domain.RepositoryConfiguration, entry domain.ManifestEntry) ([5]string, error) {
	var paths [5]string
	if strings.TrimSpace(entry.Name) == "" {
		return paths, fmt.Errorf("name is required")
	}
	files := [5]struct{ field, folder, file string }{
		{"ontology", cfg.OntologyFolder, entry.Ontology},
		{"instances", cfg.TestFolder, entry.Instances},
		{"schema", cfg.TestFolder, entry.Schema},
		{"producedShapeMap", cfg.TestFolder, entry.ProducedShapeMap},
		{"expectedShapeMap", cfg.TestFolder, entry.ExpectedShapeMap},
	}
	for i, f := range files {
		if strings.TrimSpace(f.file) == "" {
			return paths, fmt.Errorf("%q: %s is required", entry.Name, f.field)
		}
		p, err := repoPath(f.folder, f.file)
		if err != nil {
			return paths, fmt.Errorf("%q: %s: %w", entry.Name, f.field, err)
		}
		paths[i] = p
	}
	return paths, nil
}

// repoPath joins elems into a path that stays inside the repository root.
func repoPath(elems ...string) (string, error) {
	p := path.Join(elems...)
	if path.IsAbs(p) || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("path %q is outside the repository", p)
	}
	return p, nil
}

// CreateCheck opens an in-progress check run on commit and returns its id.
func (a *Adapter) CreateCheck(ctx context.Context, repo domain.Repository, commit string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/check-runs", a.apiURL, repo.Owner, repo.Name)
	body := map[string]string{
		"name":       a.checkName,
		"head_sha":   commit,
		"status":     "in_progress",
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := a.api(ctx, repo.Owner, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	id := strconv.FormatInt(created.ID, 10)
	a.logger.Info("check run created",
		zap.Stringer("repo", repo),
		zap.String("commit", commit),
		zap.String("check_run_id", id))
	return id, nil
}

// UpdateCheck completes a check run. Repeating an update with the same
// conclusion for the same check run is a no-op.
func (a *Adapter) UpdateCheck(ctx context.Context, repo domain.Repository, checkRunID string, status domain.BuildStatus, output domain.CheckOutput) error {
	conclusion := status.Conclusion()
	key := repo.String() + "#" + checkRunID

	a.mu.Lock()
	done := a.completed[key] == conclusion
	a.mu.Unlock()
	if done {
		a.logger.Debug("check run already completed", zap.String("check_run_id", checkRunID), zap.String("conclusion", conclusion))
		return nil
	}

	output.Summary = truncateOutput(output.Summary, maxOutputText)
	output.Text = truncateOutput(output.Text, maxOutputText)
	endpoint := fmt.Sprintf("%s/repos/%s/%s/check-runs/%s", a.apiURL, repo.Owner, repo.Name, url.PathEscape(checkRunID))
	body := struct {
		Status      string             `json:"status"`
		Conclusion  string             `json:"conclusion"`
		CompletedAt string             `json:"completed_at"`
		Output      domain.CheckOutput `json:"output"`
	}{
		Status:      "completed",
		Conclusion:  conclusion,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
		Output:      output,
	}
	if err := a.api(ctx, repo.Owner, http.MethodPatch, endpoint, body, nil); err != nil {
		return err
	}

	a.mu.Lock()
	a.completed[key] = conclusion
	a.mu.Unlock()
	a.logger.Info("check run completed",
		zap.Stringer("repo", repo),
		zap.String("check_run_id", checkRunID),
		zap.String("conclusion", conclusion))
	return nil
}

// fetchRaw downloads one file of the commit as text.
func (a *Adapter) fetchRaw(ctx context.Context, repo domain.Repository, commit, file string) (string, error) {
	if _, err := repoPath(file); err != nil {
		return "", domain.NewError(domain.ErrManifestParse, file, err)
	}
	endpoint, err := url.JoinPath(a.rawURL, repo.Owner, repo.Name, commit, file)
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}

	var content string
	err = retry.Do(ctx, a.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		setHeaders(req)

		resp, err := a.client.Do(req)
		if err != nil {
			return &domain.NetworkError{Op: "GET " + endpoint, Temporary: ctx.Err() == nil, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return domain.NewError(domain.ErrFileNotFound, file, nil)
		}
		if err := statusError("GET "+endpoint, resp); err != nil {
			return err
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domain.NetworkError{Op: "GET " + endpoint, Temporary: true, Err: err}
		}
		content = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", domain.NewError(domain.ErrEmptyContentFile, file, nil)
	}
	return content, nil
}

// api performs an authenticated REST call on behalf of owner's installation.
func (a *Adapter) api(ctx context.Context, owner, method, endpoint string, body, target interface{}) error {
	cred, err := a.tokens.CredentialFor(ctx, owner)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	op := method + " " + endpoint
	return retry.Do(ctx, a.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		setHeaders(req)
		req.Header.Set("Authorization", "token "+cred.Token)

		resp, err := a.client.Do(req)
		if err != nil {
			return &domain.NetworkError{Op: op, Temporary: ctx.Err() == nil, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("github API error: %s: %w", resp.Status, domain.ErrUnauthorized)
		}
		if err := statusError(op, resp); err != nil {
			return err
		}
		if target == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return &domain.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
		}
		return nil
	})
}

// truncateOutput cuts s to at most limit bytes on a rune boundary. A cut
// fenced block is closed again.
func truncateOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const marker = "\n…"
	suffix := marker
	if strings.HasPrefix(s, "```") {
		suffix += "\n```"
	}
	cut := limit - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

func setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")
}

func statusError(op string, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	return &domain.NetworkError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Temporary:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}
