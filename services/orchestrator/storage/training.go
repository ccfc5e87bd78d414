// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
)

// ErrOutsideRoot is returned for paths that escape the training directory.
var ErrOutsideRoot = errors.New("path outside training directory")

// Category groups training documents by their top-level directory.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Categories are the known top-level training directories.
var Categories = []Category{
	{ID: "brand", Name: "Brand", Description: "Core brand voice and style guide"},
	{ID: "brand-voice", Name: "Brand Voice", Description: "Tone guidelines and example copy"},
	{ID: "personas", Name: "Personas", Description: "Customer avatar profiles"},
	{ID: "frameworks", Name: "Frameworks", Description: "Breakthrough Advertising concepts"},
	{ID: "channels", Name: "Channels", Description: "Channel-specific writing guidelines"},
	{ID: "products", Name: "Products", Description: "Product catalog and details"},
	{ID: "reviews", Name: "Reviews", Description: "Customer reviews and testimonials"},
	{ID: "performance", Name: "Performance", Description: "Winning ads and metrics"},
	{ID: "compliance", Name: "Compliance", Description: "Regulatory claims and callouts"},
}

func knownCategory(id string) bool {
	for _, c := range Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

var documentExts = map[string]bool{".md": true, ".txt": true, ".json": true}

// TrainingFile is one listed training document.
type TrainingFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Category string `json:"category"`
}

// TrainingStore reads and writes training documents under one root and
// serves persona documents from a cache.
//
// # Thread Safety
//
// Safe for concurrent use. Watch invalidates the persona cache when files
// change on disk; Write invalidates it directly.
type TrainingStore struct {
	root   string
	logger *slog.Logger
	md     *converter.Converter

	mu       sync.RWMutex
	personas map[string]string
}

// NewTrainingStore returns a store rooted at root.
func NewTrainingStore(root string, logger *slog.Logger) *TrainingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingStore{
		root:   root,
		logger: logger,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		personas: map[string]string{},
	}
}

// Root is the training directory.
func (s *TrainingStore) Root() string { return s.root }

// resolve confines a slash-separated relative path to the root.
func (s *TrainingStore) resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	local := filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return filepath.Join(s.root, local), nil
}

// List returns every training document in a known category, sorted by path.
func (s *TrainingStore) List() ([]TrainingFile, error) {
	files := []TrainingFile{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !documentExts[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		category, _, found := strings.Cut(rel, "/")
		if !found || !knownCategory(category) {
			return nil
		}
		files = append(files, TrainingFile{Name: d.Name(), Path: rel, Category: category})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list training documents: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Read returns one document's content.
func (s *TrainingStore) Read(rel string) (string, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("training document %s: %w", rel, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write stores a document. HTML content is converted to markdown first,
// keeping tables.
func (s *TrainingStore) Write(req *datatypes.TrainingDocumentWrite) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	path, err := s.resolve(req.Path)
	if err != nil {
		return "", err
	}
	category, _, _ := strings.Cut(filepath.ToSlash(filepath.Clean(filepath.FromSlash(req.Path))), "/")
	if !knownCategory(category) {
		return "", datatypes.NewValidationError(fmt.Sprintf("unknown category %q", category), "path")
	}

	content := req.Content
	if req.Format == "html" {
		content, err = s.md.ConvertString(req.Content)
		if err != nil {
			return "", fmt.Errorf("convert html: %w", err)
		}
	}
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", err
	}
	s.invalidate()
	s.logger.Info("training document written", "path", req.Path, "format", req.Format, "bytes", len(content))
	return content, nil
}

// =============================================================================
// Persona Documents
// =============================================================================

// PersonaFile is the training path of a persona's document.
func PersonaFile(personaID string) string {
	return "personas/the-" + personaID + ".md"
}

// PersonaDocument returns the persona's document text, or "" when there is
// none.
func (s *TrainingStore) PersonaDocument(_ context.Context, personaID string) (string, error) {
	s.mu.RLock()
	doc, ok := s.personas[personaID]
	s.mu.RUnlock()
	if ok {
		return doc, nil
	}

	doc, err := s.Read(PersonaFile(personaID))
	if errors.Is(err, ErrNotFound) {
		doc, err = "", nil
	}
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.personas[personaID] = doc
	s.mu.Unlock()
	return doc, nil
}

func (s *TrainingStore) invalidate() {
	s.mu.Lock()
	clear(s.personas)
	s.mu.Unlock()
}

// Watch invalidates the persona cache whenever the personas directory
// changes. Blocks until ctx is cancelled; run it in a goroutine.
func (s *TrainingStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Join(s.root, "personas")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Debug("watching persona documents", "dir", dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.logger.Debug("persona document changed, invalidating cache", "path", event.Name)
				s.invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("persona watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
