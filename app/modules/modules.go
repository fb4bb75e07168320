package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xlab/treeprint"
)

const (
	SourceScraped    = "scraped"
	SourceUserUpload = "user_uploads"

	manifestName = "module_info.json"
)

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrFileNotFound   = errors.New("file not found")
)

// Manifest is the JSON record tracking which files belong to a module.
type Manifest struct {
	ModuleCode string              `json:"module_code"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
	Files      map[string][]string `json:"files"`
}

// Store manages the on-disk directory tree for module data:
// {base}/modules/{code}/{scraped,user_uploads} plus a manifest per module.
type Store struct {
	base string
}

func NewStore(baseDir string) *Store {
	if baseDir == "" {
		baseDir = "data"
	}
	return &Store{base: baseDir}
}

func (s *Store) modulesDir() string { return filepath.Join(s.base, "modules") }

func (s *Store) moduleDir(code string) string { return filepath.Join(s.modulesDir(), code) }

// EnsureLayout creates the module's directory tree if absent and returns the
// module directory path. Idempotent.
func (s *Store) EnsureLayout(moduleCode string) (string, error) {
	dir := s.moduleDir(moduleCode)
	for _, sub := range []string{SourceScraped, SourceUserUpload} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("create module layout for %s: %w", moduleCode, err)
		}
	}
	return dir, nil
}

// SaveFile writes content under the module's source-kind directory, renaming
// on collision by appending a timestamp before the extension. The manifest is
// updated with the name the file was actually stored under, which is returned
// alongside the path.
func (s *Store) SaveFile(moduleCode, filename string, content []byte, sourceKind string) (string, string, error) {
	dir, err := s.EnsureLayout(moduleCode)
	if err != nil {
		return "", "", err
	}
	if sourceKind != SourceScraped {
		sourceKind = SourceUserUpload
	}

	path := filepath.Join(dir, sourceKind, filename)
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(filename)
		name := filename[:len(filename)-len(ext)]
		filename = fmt.Sprintf("%s_%s%s", name, time.Now().Format("20060102150405"), ext)
		path = filepath.Join(dir, sourceKind, filename)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", "", fmt.Errorf("save %s: %w", filename, err)
	}
	log.Printf("📂 Saved %s file to %s", sourceKind, path)

	if err := s.RecordFile(moduleCode, filename, sourceKind); err != nil {
		return "", "", err
	}
	return path, filename, nil
}

// RecordFile adds a filename to the module manifest, append-only per source
// kind and deduplicated by name.
func (s *Store) RecordFile(moduleCode, filename, sourceKind string) error {
	manifest, err := s.readManifest(moduleCode)
	if err != nil {
		if !errors.Is(err, ErrModuleNotFound) {
			return err
		}
		now := time.Now().Format(time.RFC3339)
		manifest = &Manifest{
			ModuleCode: moduleCode,
			CreatedAt:  now,
			Files:      map[string][]string{SourceScraped: {}, SourceUserUpload: {}},
		}
	}

	for _, existing := range manifest.Files[sourceKind] {
		if existing == filename {
			return nil
		}
	}
	manifest.Files[sourceKind] = append(manifest.Files[sourceKind], filename)
	manifest.UpdatedAt = time.Now().Format(time.RFC3339)
	return s.writeManifest(moduleCode, manifest)
}

// GetModule returns the manifest for a module code.
func (s *Store) GetModule(moduleCode string) (*Manifest, error) {
	return s.readManifest(moduleCode)
}

// ListModules returns the manifests of every module on disk. Modules missing
// a manifest file appear with empty file lists.
func (s *Store) ListModules() ([]*Manifest, error) {
	entries, err := os.ReadDir(s.modulesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list modules: %w", err)
	}

	var out []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := s.readManifest(entry.Name())
		if err != nil {
			manifest = &Manifest{
				ModuleCode: entry.Name(),
				Files:      map[string][]string{SourceScraped: {}, SourceUserUpload: {}},
			}
		}
		out = append(out, manifest)
	}
	return out, nil
}

// DeleteModule removes the module directory tree and everything in it.
func (s *Store) DeleteModule(moduleCode string) error {
	dir := s.moduleDir(moduleCode)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, moduleCode)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete module %s: %w", moduleCode, err)
	}
	log.Printf("📂 Deleted module %s", moduleCode)
	return nil
}

// DeleteFile removes a file from disk and prunes its manifest entry.
func (s *Store) DeleteFile(moduleCode, filename, sourceKind string) error {
	path := filepath.Join(s.moduleDir(moduleCode), sourceKind, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s/%s/%s", ErrFileNotFound, moduleCode, sourceKind, filename)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file %s: %w", filename, err)
	}

	manifest, err := s.readManifest(moduleCode)
	if err != nil {
		return nil
	}
	files := manifest.Files[sourceKind]
	for i, existing := range files {
		if existing == filename {
			manifest.Files[sourceKind] = append(files[:i], files[i+1:]...)
			manifest.UpdatedAt = time.Now().Format(time.RFC3339)
			return s.writeManifest(moduleCode, manifest)
		}
	}
	return nil
}

// Tree renders the data directory as an ASCII tree for the debug surface.
func (s *Store) Tree() (string, error) {
	return buildTree(s.base, nil)
}

func buildTree(dir string, tree treeprint.Tree) (string, error) {
	if tree == nil {
		tree = treeprint.New()
		tree.SetValue(filepath.Base(dir))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			branch := tree.AddBranch(entry.Name())
			if _, err := buildTree(filepath.Join(dir, entry.Name()), branch); err != nil {
				return "", err
			}
		} else {
			tree.AddNode(entry.Name())
		}
	}
	return tree.String(), nil
}

func (s *Store) readManifest(moduleCode string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.moduleDir(moduleCode), manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleCode)
		}
		return nil, fmt.Errorf("read manifest for %s: %w", moduleCode, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", moduleCode, err)
	}
	if manifest.Files == nil {
		manifest.Files = map[string][]string{SourceScraped: {}, SourceUserUpload: {}}
	}
	return &manifest, nil
}

func (s *Store) writeManifest(moduleCode string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest for %s: %w", moduleCode, err)
	}
	path := filepath.Join(s.moduleDir(moduleCode), manifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest for %s: %w", moduleCode, err)
	}
	return nil
}
