package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// PrintSummary logs the outcome of a run: totals plus a per-article line.
func PrintSummary(results []ProcessingResult) {
	var succeeded, skipped, failed int
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			succeeded++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}

	log.Info("============================================================")
	log.Infof("Upload complete: %d succeeded, %d skipped, %d failed (of %d)",
		succeeded, skipped, failed, len(results))
	log.Info("============================================================")

	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			log.Infof("✓ %s (%d images, %d attachments)", r.Title, r.ImagesUploaded, r.AttachmentsUploaded)
			if r.Oversize {
				log.Warnf("  body exceeds the field limit")
			}
		case StatusSkipped:
			log.Infof("- %s: %s", r.Folder, r.SkipReason)
		default:
			log.Errorf("✗ %s", r.Folder)
			for _, e := range r.Errors {
				log.Errorf("    %s", e)
			}
		}
		for _, d := range r.Diagnostics {
			log.Debugf("    note: %s", d)
		}
	}
}

// SaveReport writes the run results as timestamped JSON next to the
// articles and returns the report path.
func SaveReport(dir string, results []ProcessingResult) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("upload_report_%s.json", time.Now().Format("20060102_150405")))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	log.Infof("Report saved: %s", path)
	return path, nil
}
