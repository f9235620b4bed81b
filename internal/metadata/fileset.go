// Package metadata discovers per-project assembly metadata files under a
// source root and swaps them out for generated content around a
// compilation pass. Originals are parked next to their file under a
// backup name for the duration of the build and moved back afterwards.
package metadata

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/fsutil"
)

const (
	// FileName is the exact name discovery matches. Variants such as
	// FileName + ".bak" are ignored.
	FileName = "AssemblyInfo.cs"

	// BackupSuffix marks a parked original. Its presence anywhere under
	// the source root means an earlier run did not restore cleanly.
	BackupSuffix = ".build-temp"
)

// File is one discovered metadata file and its staging state.
type File struct {
	Path string

	staged bool
}

// Staged reports whether the original at Path is currently parked under
// its backup name.
func (f *File) Staged() bool { return f.staged }

// FileSet tracks every metadata file under a source root and drives the
// stage and restore halves of a build.
type FileSet struct {
	root  string
	files []*File
	log   *logger.Logger
}

// Discover walks root and collects every file named FileName. Finding
// none is not an error: projects without assembly metadata compile as-is.
func Discover(root string, log *logger.Logger) (*FileSet, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrInvalidRequest, "metadata.discover").WithResource(root)
	}
	set := &FileSet{root: abs, log: log}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && d.Name() == FileName {
			set.files = append(set.files, &File{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrInvalidRequest, "metadata.discover").WithResource(abs)
	}
	log.Debug("metadata.discovered", "root", abs, "count", len(set.files))
	return set, nil
}

// Root returns the absolute source root the set was discovered under.
func (s *FileSet) Root() string { return s.root }

// Len returns the number of discovered files.
func (s *FileSet) Len() int { return len(s.files) }

// Paths returns the discovered file paths in walk order.
func (s *FileSet) Paths() []string {
	paths := make([]string, 0, len(s.files))
	for _, f := range s.files {
		paths = append(paths, f.Path)
	}
	return paths
}

// StagedCount returns how many files are currently staged.
func (s *FileSet) StagedCount() int {
	n := 0
	for _, f := range s.files {
		if f.staged {
			n++
		}
	}
	return n
}

// Stage parks every discovered file under its backup name and writes
// content in its place. A pre-existing backup aborts before anything is
// touched for that file: renaming over it would destroy the only copy of
// an earlier original. On failure Stage returns immediately, leaving
// earlier files staged; callers run Restore regardless of the outcome.
func (s *FileSet) Stage(content []byte) error {
	for _, f := range s.files {
		backup := f.Path + BackupSuffix
		if fsutil.Exists(backup) {
			return errs.Newf(errs.ErrMetadataStage, "metadata.stage", "backup already exists: %s", backup).
				WithResource(f.Path).
				WithAdvice("an earlier run did not restore cleanly; run `gantry sweep` before building")
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return errs.Wrap(err, errs.ErrMetadataStage, "metadata.stage").WithResource(f.Path)
		}
		if err := os.Rename(f.Path, backup); err != nil {
			return errs.Wrap(err, errs.ErrMetadataStage, "metadata.stage").WithResource(f.Path)
		}
		f.staged = true
		if err := os.WriteFile(f.Path, content, info.Mode().Perm()); err != nil {
			return errs.Wrap(err, errs.ErrMetadataStage, "metadata.stage").WithResource(f.Path)
		}
		s.log.Debug("metadata.staged", "file", f.Path)
	}
	return nil
}

// Restore moves every staged original back into place. It keeps going
// past per-file failures so one stuck file cannot strand the rest, and
// returns an aggregate error naming every file it could not put back.
// Files that restore cleanly are unmarked even when others fail, so a
// second Restore only retries the failures.
func (s *FileSet) Restore() error {
	var merr error
	for _, f := range s.files {
		if !f.staged {
			continue
		}
		backup := f.Path + BackupSuffix
		if !fsutil.Exists(backup) {
			merr = multierr.Append(merr, errs.Newf(errs.ErrMetadataRestore, "metadata.restore", "backup missing for %s", f.Path).
				WithResource(backup))
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			merr = multierr.Append(merr, errs.Wrap(err, errs.ErrMetadataRestore, "metadata.restore").WithResource(f.Path))
			continue
		}
		if err := os.Rename(backup, f.Path); err != nil {
			merr = multierr.Append(merr, errs.Wrap(err, errs.ErrMetadataRestore, "metadata.restore").WithResource(backup))
			continue
		}
		f.staged = false
		s.log.Debug("metadata.restored", "file", f.Path)
	}
	if merr != nil {
		return errs.Wrap(merr, errs.ErrMetadataRestore, "metadata.restore").
			WithAdvice("recover the remaining *" + BackupSuffix + " files with `gantry sweep`")
	}
	return nil
}

// FindBackups walks root and returns every parked backup left behind by
// an interrupted run, in walk order.
func FindBackups(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrInvalidRequest, "metadata.backups").WithResource(root)
	}
	var backups []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), BackupSuffix) {
			backups = append(backups, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrInvalidRequest, "metadata.backups").WithResource(abs)
	}
	return backups, nil
}

// SweepRestore moves each backup over its original path, deleting any
// generated leftover first. It returns how many files were put back and
// an aggregate error for the ones that were not.
func SweepRestore(backups []string, log *logger.Logger) (int, error) {
	restored := 0
	var merr error
	for _, backup := range backups {
		orig := strings.TrimSuffix(backup, BackupSuffix)
		if err := os.Remove(orig); err != nil && !errors.Is(err, fs.ErrNotExist) {
			merr = multierr.Append(merr, errs.Wrap(err, errs.ErrMetadataRestore, "metadata.sweep").WithResource(orig))
			continue
		}
		if err := os.Rename(backup, orig); err != nil {
			merr = multierr.Append(merr, errs.Wrap(err, errs.ErrMetadataRestore, "metadata.sweep").WithResource(backup))
			continue
		}
		restored++
		log.Info("metadata.swept", "file", orig)
	}
	if merr != nil {
		return restored, errs.Wrap(merr, errs.ErrMetadataRestore, "metadata.sweep")
	}
	return restored, nil
}
