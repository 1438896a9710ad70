// Package uploader keeps a local folder in sync with a backend index. Files
// are uploaded once per version: the .weave/uploads.json manifest remembers
// the size and mtime of what was sent.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docweave/weave/pkg/dotdir"
	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/rag"
)

// DefaultExtensions are the file types the backend ingests.
var DefaultExtensions = []string{".pdf"}

const defaultDebounce = 500 * time.Millisecond

// Backend is the part of the backend client the uploader needs.
type Backend interface {
	Upload(ctx context.Context, index, filename string, content io.Reader, multimodal bool) (rag.UploadResult, error)
	StartIndexing(ctx context.Context, index string) (rag.IndexJob, error)
}

// Config configures an Uploader.
type Config struct {
	// Dir is the folder to upload from.
	Dir string

	// Index receives the files.
	Index string

	Backend Backend

	// Manager and DotDir locate the uploads manifest.
	Manager *dotdir.Manager
	DotDir  string

	// Multimodal asks the backend to describe images during ingestion.
	Multimodal bool

	// Build starts an indexing job after every batch that uploaded files.
	Build bool

	// Extensions limits uploads to these file extensions. Defaults to
	// DefaultExtensions.
	Extensions []string

	// Debounce is how long a file must stay quiet before it is uploaded.
	Debounce time.Duration

	Logger *slog.Logger

	// OnUpload is called after every upload attempt. err is nil on success.
	OnUpload func(path string, res rag.UploadResult, err error)
}

// Result summarizes one batch.
type Result struct {
	Uploaded []string
	Skipped  []string
	Failed   map[string]error
	Job      *rag.IndexJob
}

// Uploader uploads changed files of a folder to an index.
type Uploader struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	manifest *dotdir.UploadsManifest
}

// New validates cfg and loads the manifest.
func New(cfg Config) (*Uploader, error) {
	if cfg.Backend == nil {
		return nil, errors.New("uploader requires a backend")
	}
	if cfg.Index == "" {
		return nil, errors.New("uploader requires an index")
	}
	if cfg.Manager == nil {
		cfg.Manager = dotdir.NewManager()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.Dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	cfg.Dir = dir

	manifest, err := cfg.Manager.LoadUploads(cfg.DotDir)
	if err != nil {
		return nil, err
	}

	return &Uploader{
		cfg:      cfg,
		logger:   cfg.Logger,
		manifest: manifest,
	}, nil
}

// Sync uploads every eligible file under the folder that the manifest does
// not already list with the same size and mtime.
func (u *Uploader) Sync(ctx context.Context) (Result, error) {
	var paths []string
	err := filepath.WalkDir(u.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != u.cfg.Dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if u.eligible(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", u.cfg.Dir, err)
	}

	return u.UploadFiles(ctx, paths)
}

// UploadFiles uploads the given files, skipping unchanged ones, saves the
// manifest and optionally starts indexing. Per-file failures are collected in
// Result.Failed; the returned error reports manifest and indexing failures.
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) (Result, error) {
	res := Result{Failed: make(map[string]error)}

	slices.Sort(paths)
	for _, path := range slices.Compact(paths) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		uploaded, err := u.uploadOne(ctx, path)
		switch {
		case err != nil:
			res.Failed[path] = err
		case uploaded:
			res.Uploaded = append(res.Uploaded, path)
		default:
			res.Skipped = append(res.Skipped, path)
		}
	}

	if len(res.Uploaded) == 0 {
		return res, nil
	}

	u.mu.Lock()
	err := u.cfg.Manager.SaveUploads(u.manifest, u.cfg.DotDir)
	u.mu.Unlock()
	if err != nil {
		return res, err
	}

	if !u.cfg.Build {
		return res, nil
	}

	job, err := u.cfg.Backend.StartIndexing(ctx, u.cfg.Index)
	if err != nil {
		return res, fmt.Errorf("starting indexing of %s: %w", u.cfg.Index, err)
	}
	res.Job = &job
	u.logger.Info("indexing started", "index", u.cfg.Index, "job", job.JobID)

	u.mu.Lock()
	for _, path := range res.Uploaded {
		if f, ok := u.manifest.Lookup(u.cfg.Index, u.rel(path)); ok {
			f.Indexed = true
			u.manifest.Put(f)
		}
	}
	err = u.cfg.Manager.SaveUploads(u.manifest, u.cfg.DotDir)
	u.mu.Unlock()

	return res, err
}

func (u *Uploader) uploadOne(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}

	rel := u.rel(path)

	u.mu.Lock()
	unchanged := u.manifest.Unchanged(u.cfg.Index, rel, info.Size(), info.ModTime())
	u.mu.Unlock()
	if unchanged {
		u.logger.Debug("skipping unchanged file", "path", rel)
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	result, err := u.cfg.Backend.Upload(ctx, u.cfg.Index, filepath.Base(path), f, u.cfg.Multimodal)
	if u.cfg.OnUpload != nil {
		u.cfg.OnUpload(path, result, err)
	}
	if err != nil {
		u.logger.Warn("upload failed", "path", rel, "error", err)
		return false, err
	}

	u.logger.Info("uploaded", "path", rel, "index", u.cfg.Index, "pages", result.NumPages)

	u.mu.Lock()
	u.manifest.Put(dotdir.UploadedFile{
		Index:      u.cfg.Index,
		Path:       rel,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		UploadedAt: time.Now().UTC(),
	})
	u.mu.Unlock()
	return true, nil
}

// Watch runs Sync once and then uploads files as they are created or
// modified, until ctx is cancelled. Changes are batched: a batch is sent
// once no file changed for the debounce interval.
func (u *Uploader) Watch(ctx context.Context, batches chan<- Result) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating folder watcher: %w", err)
	}
	defer watcher.Close()

	if err := u.addRecursive(watcher, u.cfg.Dir); err != nil {
		return err
	}

	res, err := u.Sync(ctx)
	emit(ctx, batches, res)
	if err != nil {
		return err
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(u.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := u.addRecursive(watcher, event.Name); err != nil {
					u.logger.Warn("cannot watch new folder", "path", event.Name, "error", err)
				}
				continue
			}
			if !u.eligible(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(u.cfg.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			u.logger.Warn("folder watcher error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)

			res, err := u.UploadFiles(ctx, paths)
			emit(ctx, batches, res)
			if err != nil {
				u.logger.Error("upload batch failed", "error", err)
			}
		}
	}
}

func emit(ctx context.Context, batches chan<- Result, res Result) {
	if batches == nil || (len(res.Uploaded) == 0 && len(res.Failed) == 0) {
		return
	}
	select {
	case batches <- res:
	case <-ctx.Done():
	}
}

func (u *Uploader) addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != u.cfg.Dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (u *Uploader) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return slices.Contains(u.cfg.Extensions, ext)
}

func (u *Uploader) rel(path string) string {
	rel, err := filepath.Rel(u.cfg.Dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
