package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nainya/confsnap/pkg/backup"
	"github.com/nainya/confsnap/pkg/changes"
)

func newTabwriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
}

// printBackup writes the capture section then the change section of a run
func printBackup(w io.Writer, results []backup.Result, context int) error {
	fmt.Fprint(w, "\nStarting Config Backup...\n\n")
	for _, r := range results {
		fmt.Fprintf(w, "Backing up config from %s...\n", r.DeviceID)
		switch {
		case r.Saved != nil:
			fmt.Fprintf(w, " Config saved: %s\n\n", r.Saved.Key())
		default:
			fmt.Fprintf(w, " Backup failed: %v\n\n", r.Err)
		}
	}

	fmt.Fprint(w, "\nChecking for config changes...\n\n")
	for _, r := range results {
		switch r.Status {
		case backup.StatusChanged, backup.StatusNoChange:
			if err := printDiff(w, r.Diff, context); err != nil {
				return err
			}
		case backup.StatusInsufficientHistory:
			fmt.Fprintf(w, " Not enough backups to compare for %s\n", r.DeviceID)
		case backup.StatusCompareFailed:
			fmt.Fprintf(w, " Could not compare %s: %v\n", r.DeviceID, r.Err)
		}
	}
	return nil
}

func printDiff(w io.Writer, res *changes.Result, context int) error {
	if !res.Changed() {
		fmt.Fprintf(w, "✔ No changes found in %s\n", res.DeviceID)
		return nil
	}

	unified, err := res.Unified(context)
	if err != nil {
		return fmt.Errorf("render diff for %s: %w", res.DeviceID, err)
	}
	fmt.Fprintf(w, "\n CHANGES FOUND in %s:\n\n%s\n", res.DeviceID, unified)
	return nil
}

// failures counts devices that ended without a comparison
func failures(results []backup.Result) int {
	n := 0
	for _, r := range results {
		switch r.Status {
		case backup.StatusFetchFailed, backup.StatusStorageFailed, backup.StatusCompareFailed:
			n++
		}
	}
	return n
}
