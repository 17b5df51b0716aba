package queue

import (
	"log/slog"
	"os"
	"path/filepath"
)

// DedupeExtension strips one doubled trailing extension from a file name
// ("report.xlsx.xlsx" -> "report.xlsx"). Returns the input unchanged when no
// duplicate is present. Earlier upload handling occasionally appended the
// extension twice; stored paths with that defect are healed here.
func DedupeExtension(name string) (string, bool) {
	changed := false
	for {
		ext := filepath.Ext(name)
		if ext == "" {
			return name, changed
		}
		base := name[:len(name)-len(ext)]
		if filepath.Ext(base) != ext {
			return name, changed
		}
		name = base
		changed = true
	}
}

// ResolvePath returns the absolute on-disk path for a stored file path,
// healing a doubled extension when the recorded path is missing. Relative
// paths are resolved against baseDir. Resolution is best effort: when
// neither candidate exists the original absolute path is returned and the
// backend reports the file as failed.
func ResolvePath(baseDir, path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(baseDir, abs)
		if !filepath.IsAbs(abs) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, abs)
			}
		}
	}

	if _, err := os.Stat(abs); err == nil {
		return abs
	}

	dir := filepath.Dir(abs)
	base, changed := DedupeExtension(filepath.Base(abs))
	if !changed {
		return abs
	}

	corrected := filepath.Join(dir, base)
	if _, err := os.Stat(corrected); err == nil {
		slog.Info("healed duplicate file extension", "path", abs, "corrected", corrected)
		return corrected
	}

	slog.Warn("file missing at recorded path", "path", abs)
	return abs
}
