// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package persona

import (
	"bufio"
	"strings"
)

// =============================================================================
// Line Scanner
// =============================================================================

// LineKind classifies one line of a persona document.
type LineKind int

const (
	// KindText is any line that is not a heading or a rule.
	KindText LineKind = iota
	// KindHeading is an ATX heading ("## Title").
	KindHeading
	// KindRule is a horizontal rule ("---").
	KindRule
)

// Line is one classified line.
//
// For headings, Level is the number of leading '#' and Text is the heading
// text without markers. For text lines, Text is the raw line.
type Line struct {
	Kind  LineKind
	Level int
	Text  string
}

// Document is a scanned persona document.
type Document struct {
	Lines []Line
}

// Scan classifies every line of text. It never fails; unreadable input
// simply produces fewer lines.
//
// # Description
//
// Scan is the first stage of extraction. Later stages work only on bounded
// ranges of the returned lines, so heading depth and section boundaries are
// decided once here instead of per field.
func Scan(text string) *Document {
	doc := &Document{}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		doc.Lines = append(doc.Lines, classify(sc.Text()))
	}
	return doc
}

func classify(raw string) Line {
	raw = strings.TrimRight(raw, "\r")
	trimmed := strings.TrimSpace(raw)

	if isRule(trimmed) {
		return Line{Kind: KindRule, Text: raw}
	}

	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level >= 1 && level <= 6 && (level == len(trimmed) || trimmed[level] == ' ') {
		return Line{
			Kind:  KindHeading,
			Level: level,
			Text:  strings.TrimSpace(strings.TrimRight(trimmed[level:], "#")),
		}
	}
	return Line{Kind: KindText, Text: raw}
}

// isRule reports a thematic break: three or more '-', '*' or '_' alone.
func isRule(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 3 {
		return false
	}
	c := s[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	return strings.Count(s, string(c)) == len(s)
}

// Section returns the body of the first heading at the given level whose
// text starts with label (case-insensitive). The body runs until the next
// heading of the same or a higher level, or a horizontal rule. A missing
// section yields nil.
func (d *Document) Section(level int, label string) []Line {
	return section(d.Lines, level, label)
}

func section(lines []Line, level int, label string) []Line {
	start := -1
	for i, l := range lines {
		if l.Kind == KindHeading && l.Level == level && hasPrefixFold(l.Text, label) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		l := lines[i]
		if l.Kind == KindRule || (l.Kind == KindHeading && l.Level <= level) {
			end = i
			break
		}
	}
	return lines[start:end]
}

// block is one heading plus the lines under it.
type block struct {
	title string
	lines []Line
}

// splitBlocks cuts lines at every heading of exactly the given level. Lines
// before the first such heading are dropped.
func splitBlocks(lines []Line, level int) []block {
	var blocks []block
	for _, l := range lines {
		if l.Kind == KindHeading && l.Level == level {
			blocks = append(blocks, block{title: l.Text})
			continue
		}
		if len(blocks) > 0 {
			b := &blocks[len(blocks)-1]
			b.lines = append(b.lines, l)
		}
	}
	return blocks
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
