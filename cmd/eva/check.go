package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eva/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file.eva>...",
	Short: "Parse and compile without executing",
	Long:  `Check Eva source files for lexical, syntactic, and compile-time errors`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("no-cache", false, "bypass the check result cache")
	checkCmd.Flags().Int("jobs", 4, "number of files checked concurrently")
}

func runCheck(cmd *cobra.Command, args []string) error {
	colorOn := setupColor(cmd)

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs < 1 {
		jobs = 1
	}

	var cache *driver.CheckCache
	if !noCache {
		// A broken cache dir is not fatal; checking just loses memoization.
		cache, _ = driver.OpenCheckCache("eva")
	}

	var mu sync.Mutex // serializes output
	failed := false

	var g errgroup.Group
	g.SetLimit(jobs)
	for _, path := range args {
		path := path
		g.Go(func() error {
			ok, err := checkOne(cmd, path, cache, colorOn, &mu)
			if err != nil {
				return err
			}
			if !ok {
				mu.Lock()
				failed = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

// checkOne checks a single file, consulting the content-hash cache
// first. It reports ok=false when the file has errors.
func checkOne(cmd *cobra.Command, path string, cache *driver.CheckCache, colorOn bool, mu *sync.Mutex) (bool, error) {
	if cache != nil {
		key, err := driver.ContentKey(path)
		if err != nil {
			return false, err
		}
		if payload, hit := cache.Load(key); hit {
			mu.Lock()
			defer mu.Unlock()
			for _, d := range payload.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", path, d.Line, d.Col, d.Message)
			}
			if payload.HasErrors() {
				return false, nil
			}
			fmt.Printf("%s: ok (cached)\n", path)
			return true, nil
		}
	}

	res, err := driver.CompileFile(path, driver.Options{MaxDiagnostics: maxDiagnostics(cmd)})
	if err != nil && !errors.Is(err, driver.ErrCompileFailed) {
		return false, err
	}

	if cache != nil && res.FileSet != nil {
		if key, keyErr := driver.ContentKey(path); keyErr == nil {
			_ = cache.Store(key, driver.PayloadFromResult(path, res))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if res.Bag.HasErrors() {
		printDiagnostics(res, colorOn)
		return false, nil
	}
	fmt.Printf("%s: ok\n", path)
	return true, nil
}
