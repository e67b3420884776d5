package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/git"
	"github.com/waabox/ontoloci/internal/store"
)

var (
	runOwner   string
	runRepo    string
	runCommit  string
	runWorkers int
	runDir     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate the test cases of a commit and report a check run",
	Long: `Run executes one build: it opens a check run on the commit, fetches the
manifest and every test case file, validates them and completes the check run
with the aggregated conclusion.

Owner, repository and commit default to the origin remote and HEAD of the
checkout in --dir. The result is printed as JSON. The command exits non-zero
unless the build succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, commit, err := runTarget()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.StorePathOrDefault())
		if err != nil {
			return err
		}
		defer db.Close()

		workers := runWorkers
		if workers <= 0 {
			workers = cfg.WorkersOrDefault()
		}
		exec, err := newExecutor(cfg, repo.RemoteURL, db, prometheus.NewRegistry(), workers, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting build", zap.Stringer("repo", repo), zap.String("commit", commit), zap.Int("workers", workers))
		result := exec.ExecuteBuild(ctx, exec.NewBuild(repo, commit))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		if result.Status != domain.BuildSuccess {
			return fmt.Errorf("build %s finished with status %s", result.ID, result.Status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runOwner, "owner", "", "repository owner (default: from the origin remote)")
	runCmd.Flags().StringVar(&runRepo, "repo", "", "repository name (default: from the origin remote)")
	runCmd.Flags().StringVar(&runCommit, "commit", "", "commit SHA to build (default: HEAD)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "concurrent test cases (default: executor.workers)")
	runCmd.Flags().StringVar(&runDir, "dir", ".", "local checkout used to fill missing flags")
}

// runTarget completes the flags from the local checkout when any is missing.
func runTarget() (domain.Repository, string, error) {
	repo := domain.Repository{Owner: runOwner, Name: runRepo}
	commit := runCommit
	if repo.Owner != "" && repo.Name != "" && commit != "" {
		return repo, commit, nil
	}

	if repo.Owner == "" || repo.Name == "" {
		detected, err := git.DetectRepository(runDir)
		if err != nil {
			return domain.Repository{}, "", fmt.Errorf("detecting repository: %w", err)
		}
		if repo.Owner == "" {
			repo.Owner = detected.Owner
		}
		if repo.Name == "" {
			repo.Name = detected.Name
		}
		repo.RemoteURL = detected.RemoteURL
	}
	if commit == "" {
		head, err := git.ResolveHead(runDir)
		if err != nil {
			return domain.Repository{}, "", fmt.Errorf("resolving HEAD: %w", err)
		}
		commit = head
	}
	return repo, commit, nil
}
