package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// Per-chapter staging directories are named StagingPrefix...StagingSuffix.
const (
	StagingPrefix = "chapter_"
	StagingSuffix = "_tmp"
)

// SetupInterruptHandler cancels the run on the first signal so pipelines can
// unwind and remove their own staging. A second signal runs ForceCleanup and
// exits.
func SetupInterruptHandler(cancel context.CancelFunc, staged *StagingRegistry, dirs ...string) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Println("\nInterrupt received. Stopping chapters in flight (press Ctrl+C again to force)...")
		cancel()

		<-sig
		fmt.Println("\nForced exit. Cleaning up...")
		ForceCleanup(staged, dirs...)

		os.Exit(1)
	}()
}

// ForceCleanup removes the staging directories tracked by staged, wherever
// they live, then half-written outputs in dirs, and finally dirs themselves
// when nothing else is left in them.
func ForceCleanup(staged *StagingRegistry, dirs ...string) {
	if staged != nil {
		staged.RemoveAll()
	}

	for _, d := range dirs {
		CleanupUnfinished(d)
		RemoveIfEmpty(d)
	}
}

// CleanupUnfinished removes staging directories and half-written atomic
// output files left in dir.
func CleanupUnfinished(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		stale := (e.IsDir() && strings.HasPrefix(name, StagingPrefix) && strings.HasSuffix(name, StagingSuffix)) ||
			(!e.IsDir() && strings.HasPrefix(name, ".tmp-") && strings.Contains(name, ".pdf"))
		if !stale {
			continue
		}

		full := filepath.Join(dir, name)
		if err := os.RemoveAll(full); err != nil {
			fmt.Printf("Error cleaning up %s: %v\n", full, err)
		} else {
			fmt.Printf("Removed %s\n", full)
		}
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty folder: %s\n", dir)
		}
	}
}
