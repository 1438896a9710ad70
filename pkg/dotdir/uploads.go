package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	uploadsFile = "uploads.json"
)

// UploadsManifest lists the files a watched folder has already sent to the
// backend, keyed by index and path.
type UploadsManifest struct {
	Files []UploadedFile `json:"files"`
}

// UploadedFile is one uploaded file. Size and ModTime identify the version
// that was sent; a file whose size or mtime changed is uploaded again.
type UploadedFile struct {
	Index      string    `json:"index"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	UploadedAt time.Time `json:"uploaded_at"`
	Indexed    bool      `json:"indexed,omitempty"`
}

// Lookup returns the entry for path in index.
func (u *UploadsManifest) Lookup(index, path string) (UploadedFile, bool) {
	for _, f := range u.Files {
		if f.Index == index && f.Path == path {
			return f, true
		}
	}
	return UploadedFile{}, false
}

// Put adds or replaces the entry for f.Index and f.Path.
func (u *UploadsManifest) Put(f UploadedFile) {
	for i := range u.Files {
		if u.Files[i].Index == f.Index && u.Files[i].Path == f.Path {
			u.Files[i] = f
			return
		}
	}
	u.Files = append(u.Files, f)
	slices.SortFunc(u.Files, func(a, b UploadedFile) int {
		if c := strings.Compare(a.Index, b.Index); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}

// Unchanged reports whether the file at path in index was already uploaded
// with the given size and mtime.
func (u *UploadsManifest) Unchanged(index, path string, size int64, modTime time.Time) bool {
	f, ok := u.Lookup(index, path)
	return ok && f.Size == size && f.ModTime.Equal(modTime)
}

// LoadUploads loads the manifest from a target .weave/uploads.json.
// A missing file yields an empty manifest.
func (m *Manager) LoadUploads(overrideDir string) (*UploadsManifest, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, uploadsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &UploadsManifest{}, nil
		}
		return nil, fmt.Errorf("reading uploads manifest: %w", err)
	}

	manifest := &UploadsManifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("parsing uploads manifest: %w", err)
	}

	return manifest, nil
}

// SaveUploads persists the manifest to a target .weave/uploads.json.
func (m *Manager) SaveUploads(manifest *UploadsManifest, overrideDir string) error {
	if manifest == nil {
		return errors.New("cannot save nil uploads manifest")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling uploads manifest: %w", err)
	}

	path := filepath.Join(dir, uploadsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing uploads manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing uploads manifest: %w", err)
	}

	return nil
}
