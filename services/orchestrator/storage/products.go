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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
)

// ProductStore is the product catalog kept as one JSON array on disk.
// Safe for concurrent use within one process.
type ProductStore struct {
	path string
	mu   sync.Mutex
}

// NewProductStore returns a store backed by path. The file need not exist.
func NewProductStore(path string) *ProductStore {
	return &ProductStore{path: path}
}

// List returns every product in file order.
func (s *ProductStore) List() ([]datatypes.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert replaces the product with the same id or appends it. A missing id
// is derived from the name.
func (s *ProductStore) Upsert(p datatypes.Product) (datatypes.Product, error) {
	if err := p.Validate(); err != nil {
		return datatypes.Product{}, err
	}
	if p.ID == "" {
		p.ID = datatypes.ProductSlug(p.Name)
	}
	if p.ID == "" {
		return datatypes.Product{}, datatypes.NewValidationError("name yields an empty id", "name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	products, err := s.load()
	if err != nil {
		return datatypes.Product{}, err
	}
	replaced := false
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		products = append(products, p)
	}
	if err := s.save(products); err != nil {
		return datatypes.Product{}, err
	}
	return p, nil
}

// Delete removes the product or returns ErrNotFound.
func (s *ProductStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	products, err := s.load()
	if err != nil {
		return err
	}
	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(products) {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return s.save(kept)
}

func (s *ProductStore) load() ([]datatypes.Product, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []datatypes.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	products := []datatypes.Product{}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (s *ProductStore) save(products []datatypes.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0640); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
