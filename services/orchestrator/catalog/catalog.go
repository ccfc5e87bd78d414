// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the fixed reference data for launch planning:
// the persona enumeration, the launch tiers and the channel list.
//
// The data ships embedded as YAML. A deployment may point at its own file
// with the same shape.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Persona is one customer archetype.
type Persona struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Percentage float64 `yaml:"percentage"`
}

// Tier bounds the creative and retention volume of a launch.
type Tier struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxConcepts int    `yaml:"maxConcepts"`
	MaxEmails   int    `yaml:"maxEmails"`
	MaxSMS      int    `yaml:"maxSMS"`
}

// Channel describes one marketing channel for prompt context.
type Channel struct {
	ID       datatypes.ChannelID `yaml:"id"`
	Name     string              `yaml:"name"`
	Guidance string              `yaml:"guidance"`
}

// Catalog is the parsed reference data. Read-only after Load.
type Catalog struct {
	Brand    string    `yaml:"brand"`
	Personas []Persona `yaml:"personas"`
	Tiers    []Tier    `yaml:"tiers"`
	Channels []Channel `yaml:"channels"`
}

// ErrUnknownTier is returned by Tier for ids not in the catalog.
var ErrUnknownTier = errors.New("unknown tier")

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load parses the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) check() error {
	if len(c.Personas) == 0 {
		return errors.New("catalog: no personas")
	}
	if len(c.Tiers) == 0 {
		return errors.New("catalog: no tiers")
	}
	seen := map[string]bool{}
	for _, p := range c.Personas {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("catalog: missing or duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
	}
	for _, t := range c.Tiers {
		if t.MaxConcepts < 0 {
			return fmt.Errorf("catalog: tier %s has negative maxConcepts", t.ID)
		}
	}
	for _, ch := range c.Channels {
		if !ch.ID.Valid() {
			return fmt.Errorf("catalog: unknown channel %q", ch.ID)
		}
	}
	return nil
}

// Tier looks up a tier by id.
func (c *Catalog) Tier(id string) (Tier, error) {
	for _, t := range c.Tiers {
		if t.ID == id {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, id)
}

// Persona looks up a persona by id.
func (c *Catalog) Persona(id string) (Persona, bool) {
	for _, p := range c.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// Channel looks up a channel by id. Unknown ids get a bare entry.
func (c *Catalog) Channel(id datatypes.ChannelID) Channel {
	for _, ch := range c.Channels {
		if ch.ID == id {
			return ch
		}
	}
	return Channel{ID: id, Name: string(id)}
}

// PersonaIDs returns the persona ids in enumeration order.
func (c *Catalog) PersonaIDs() []string {
	ids := make([]string, len(c.Personas))
	for i, p := range c.Personas {
		ids[i] = p.ID
	}
	return ids
}
