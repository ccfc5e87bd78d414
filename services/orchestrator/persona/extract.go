// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package persona mines semi-structured persona documents for the facts
// that feed persona-insight prompts: customer quotes, the emotional job,
// proven copy angles, jobs to be done and objection handling.
//
// Extraction never fails. A section that is missing or malformed yields an
// empty field and leaves every other field untouched.
package persona

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section labels. Matching is a case-insensitive prefix match on the
// heading text.
const (
	labelGoldNuggets  = "Gold Nugget Quotes"
	labelVOC          = "Voice of Customer"
	labelCopyAngles   = "Copy Angles by Theme"
	labelJTBD         = "Jobs To Be Done"
	labelFunctional   = "Functional Jobs"
	labelEmotional    = "Emotional Jobs"
	labelSocial       = "Social Jobs"
	labelObjections   = "Objections & How to Overcome"
	labelEmotionalJob = "The Emotional Job"
	labelOneSentence  = "In One Sentence"
)

const (
	// MinQuoteLength is exclusive: kept quotes are longer than this.
	MinQuoteLength = 20
	// MaxEmotionalJobLength caps the emotional job statement in characters.
	MaxEmotionalJobLength = 500
)

// ThemeAngles groups proven copy angles under one theme.
type ThemeAngles struct {
	Theme  string   `json:"theme"`
	Angles []string `json:"angles"`
}

// JobsToBeDone lists the functional, emotional and social jobs.
type JobsToBeDone struct {
	Functional []string `json:"functional"`
	Emotional  []string `json:"emotional"`
	Social     []string `json:"social"`
}

// Objection pairs a purchase objection with its response.
type Objection struct {
	Objection string `json:"objection"`
	Response  string `json:"response"`
}

// Facts is the structured record extracted from one persona document.
type Facts struct {
	Quotes                []string      `json:"quotes"`
	VoiceOfCustomerQuotes []string      `json:"voiceOfCustomerQuotes"`
	EmotionalJobStatement string        `json:"emotionalJobStatement"`
	CopyAnglesByTheme     []ThemeAngles `json:"copyAnglesByTheme"`
	JobsToBeDone          JobsToBeDone  `json:"jobsToBeDone"`
	Objections            []Objection   `json:"objections"`
}

// Empty reports whether nothing at all was extracted.
func (f Facts) Empty() bool {
	return len(f.Quotes) == 0 &&
		len(f.VoiceOfCustomerQuotes) == 0 &&
		f.EmotionalJobStatement == "" &&
		len(f.CopyAnglesByTheme) == 0 &&
		len(f.JobsToBeDone.Functional) == 0 &&
		len(f.JobsToBeDone.Emotional) == 0 &&
		len(f.JobsToBeDone.Social) == 0 &&
		len(f.Objections) == 0
}

// Extract parses one persona document.
//
// # Description
//
// The text is scanned once into classified lines, then each field runs its
// own extractor over the lines of its section. Slices in the result are
// never nil so the JSON form always carries arrays.
//
// # Inputs
//
//   - text: Full document text. Empty text yields an all-empty record.
//
// # Outputs
//
//   - Facts: The extracted record.
//
// # Thread Safety
//
// Extract is a pure function and safe for concurrent use.
func Extract(text string) Facts {
	doc := Scan(text)
	return Facts{
		Quotes:                quoteLines(doc.Section(2, labelGoldNuggets)),
		VoiceOfCustomerQuotes: quoteLines(doc.Section(2, labelVOC)),
		EmotionalJobStatement: emotionalJob(doc),
		CopyAnglesByTheme:     copyAngles(doc.Section(2, labelCopyAngles)),
		JobsToBeDone:          jobsToBeDone(doc.Section(2, labelJTBD)),
		Objections:            objections(doc.Section(3, labelObjections)),
	}
}

// =============================================================================
// Quotes
// =============================================================================

const quoteChars = "\"“”"

func quoteLines(lines []Line) []string {
	quotes := []string{}
	for _, l := range lines {
		if l.Kind != KindText {
			continue
		}
		s := strings.TrimSpace(l.Text)
		if !strings.HasPrefix(s, ">") {
			continue
		}
		s = strings.TrimSpace(strings.TrimPrefix(s, ">"))
		s = strings.TrimSpace(strings.Trim(s, quoteChars))
		if utf8.RuneCountInString(s) > MinQuoteLength {
			quotes = append(quotes, s)
		}
	}
	return quotes
}

// =============================================================================
// Emotional Job
// =============================================================================

var boldQuote = regexp.MustCompile(`\*\*["\x{201c}]([^"\x{201c}\x{201d}]+)["\x{201d}]\*\*`)

func emotionalJob(doc *Document) string {
	if lines := doc.Section(3, labelEmotionalJob); lines != nil {
		var parts []string
		for _, l := range lines {
			s := strings.TrimSpace(l.Text)
			if l.Kind != KindText || s == "" || strings.HasPrefix(s, "**") {
				continue
			}
			parts = append(parts, s)
		}
		return truncateRunes(strings.Join(parts, " "), MaxEmotionalJobLength)
	}

	for _, l := range doc.Section(3, labelOneSentence) {
		if m := boldQuote.FindStringSubmatch(l.Text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// =============================================================================
// Copy Angles
// =============================================================================

var (
	themePrefix  = regexp.MustCompile(`(?i)^(?:major\s+)?theme\s+[a-z0-9]+\s*:\s*`)
	angleHeading = regexp.MustCompile(`(?i)angle[^"\x{201c}\n]*["\x{201c}]([^"\x{201c}\x{201d}]+)["\x{201d}]`)
	staticCopy   = regexp.MustCompile(`(?i)\*\*static copy:\*\*\s*["\x{201c}]([^"\x{201c}\x{201d}]+)["\x{201d}]`)
)

// copyAngles reads "### Theme" blocks. Angles come from "#### ... Angle"
// headings carrying a quoted line and from "**Static copy:**" lines. Themes
// whose headings do not use level 3 are not found.
func copyAngles(lines []Line) []ThemeAngles {
	themes := []ThemeAngles{}
	for _, b := range splitBlocks(lines, 3) {
		var angles []string
		seen := map[string]bool{}
		add := func(a string) {
			a = strings.TrimSpace(a)
			if a == "" || seen[a] {
				return
			}
			seen[a] = true
			angles = append(angles, a)
		}

		for _, l := range b.lines {
			switch {
			case l.Kind == KindHeading && l.Level == 4:
				if m := angleHeading.FindStringSubmatch(l.Text); m != nil {
					add(m[1])
				}
			case l.Kind == KindText:
				if m := staticCopy.FindStringSubmatch(l.Text); m != nil {
					add(m[1])
				}
			}
		}
		if len(angles) == 0 {
			continue
		}
		themes = append(themes, ThemeAngles{Theme: themeName(b.title), Angles: angles})
	}
	return themes
}

func themeName(title string) string {
	name := themePrefix.ReplaceAllString(strings.TrimSpace(title), "")
	name = strings.NewReplacer("*", "", "\"", "", "“", "", "”", "").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return strings.TrimSpace(title)
	}
	return name
}

// =============================================================================
// Jobs To Be Done
// =============================================================================

var numberedBold = regexp.MustCompile(`^\d+\.\s*\*\*([^*]+)\*\*`)

func jobsToBeDone(lines []Line) JobsToBeDone {
	return JobsToBeDone{
		Functional: numberedJobs(section(lines, 3, labelFunctional)),
		Emotional:  numberedJobs(section(lines, 3, labelEmotional)),
		Social:     numberedJobs(section(lines, 3, labelSocial)),
	}
}

func numberedJobs(lines []Line) []string {
	jobs := []string{}
	for _, l := range lines {
		if l.Kind != KindText {
			continue
		}
		m := numberedBold.FindStringSubmatch(strings.TrimSpace(l.Text))
		if m == nil {
			continue
		}
		if job := strings.TrimSpace(m[1]); job != "" {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// =============================================================================
// Objections
// =============================================================================

func objections(lines []Line) []Objection {
	out := []Objection{}
	for _, l := range lines {
		if l.Kind != KindText {
			continue
		}
		cells := tableCells(l.Text)
		if len(cells) < 2 || isSeparatorRow(cells) || strings.Contains(cells[0], "Objection") {
			continue
		}
		out = append(out, Objection{
			Objection: strings.TrimSpace(strings.NewReplacer("\"", "", "“", "", "”", "").Replace(cells[0])),
			Response:  cells[1],
		})
	}
	return out
}

// tableCells splits a pipe-delimited row into its non-empty trimmed cells.
func tableCells(row string) []string {
	row = strings.TrimSpace(row)
	if !strings.HasPrefix(row, "|") {
		return nil
	}
	var cells []string
	for _, c := range strings.Split(row, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}
