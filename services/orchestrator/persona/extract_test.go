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
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const educatorDoc = `# The Dedicated Educator

## Overview
Teachers who get ready in the car line.

### In One Sentence
**"I need to look awake for thirty kids by 7:45."**

### The Emotional Job This Product Is Doing
**Core job**
She wants to feel put together without spending time she does not have.
It is permission to care about herself again.

## Gold Nugget Quotes
> "I put it on in the car and nobody at school knows."
> “Finally a foundation that survives recess duty.”
> Too short.
> "My students asked if I got more sleep, I did not."

---

## Voice of Customer
> "Honestly it is the only thing in my bag that gets used."
> ok

## Copy Angles by Theme

Intro text before any theme.

### Major Theme 1: Time Scarcity
#### Emotional Angle: "Five minutes is all you get"
**Static copy:** "Ready before the first bell"
**Static copy:** "Five minutes is all you get"

### Theme B: **Being Seen**
#### Identity Angle: "You are the adult in the room"

### Theme C: Empty Theme
Nothing quotable here.

## Jobs To Be Done

### Functional Jobs
1. **Look rested fast** - even after grading until midnight
2. **Last all day** through recess duty
3. Not bold, ignored

### Emotional Jobs
1. **Feel like herself again**

### Social Jobs
1. **Look professional for parents**

### Objections & How to Overcome
| Objection | Response |
|-----------|----------|
| "It's too expensive for a teacher salary" | One stick lasts a whole semester |
| “Will it look cakey?” | Sheer buildable formula |

## Closing
The end.
`

func TestExtract_EducatorDocument(t *testing.T) {
	facts := Extract(educatorDoc)

	assert.Equal(t, []string{
		"I put it on in the car and nobody at school knows.",
		"Finally a foundation that survives recess duty.",
		"My students asked if I got more sleep, I did not.",
	}, facts.Quotes)

	assert.Equal(t, []string{"Honestly it is the only thing in my bag that gets used."}, facts.VoiceOfCustomerQuotes)

	assert.Equal(t,
		"She wants to feel put together without spending time she does not have. It is permission to care about herself again.",
		facts.EmotionalJobStatement)

	assert.Equal(t, []ThemeAngles{
		{Theme: "Time Scarcity", Angles: []string{"Five minutes is all you get", "Ready before the first bell"}},
		{Theme: "Being Seen", Angles: []string{"You are the adult in the room"}},
	}, facts.CopyAnglesByTheme)

	assert.Equal(t, JobsToBeDone{
		Functional: []string{"Look rested fast", "Last all day"},
		Emotional:  []string{"Feel like herself again"},
		Social:     []string{"Look professional for parents"},
	}, facts.JobsToBeDone)

	assert.Equal(t, []Objection{
		{Objection: "It's too expensive for a teacher salary", Response: "One stick lasts a whole semester"},
		{Objection: "Will it look cakey?", Response: "Sheer buildable formula"},
	}, facts.Objections)

	assert.False(t, facts.Empty())
}

func TestExtract_GoldNuggetQuotesScenario(t *testing.T) {
	doc := `## Gold Nugget Quotes
> "This is the first long customer quotation here."
> "tiny"
> "Second qualifying quote with plenty of length."
> "Third qualifying quote, also long enough to keep."
`
	facts := Extract(doc)
	assert.Equal(t, []string{
		"This is the first long customer quotation here.",
		"Second qualifying quote with plenty of length.",
		"Third qualifying quote, also long enough to keep.",
	}, facts.Quotes)
}

func TestExtract_QuoteLengthFilter(t *testing.T) {
	doc := "## Gold Nugget Quotes\n" +
		"> " + strings.Repeat("a", 20) + "\n" +
		"> " + strings.Repeat("b", 21) + "\n"
	facts := Extract(doc)
	require.Len(t, facts.Quotes, 1)
	for _, q := range append(facts.Quotes, Extract(educatorDoc).Quotes...) {
		assert.Greater(t, len([]rune(q)), MinQuoteLength)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	first := Extract(educatorDoc)
	second := Extract(educatorDoc)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("extraction not idempotent (-first +second):\n%s", diff)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	facts := Extract("")
	assert.True(t, facts.Empty())

	data, err := json.Marshal(facts)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"quotes": [],
		"voiceOfCustomerQuotes": [],
		"emotionalJobStatement": "",
		"copyAnglesByTheme": [],
		"jobsToBeDone": {"functional": [], "emotional": [], "social": []},
		"objections": []
	}`, string(data))
}

func TestExtract_MissingSectionsDoNotContaminate(t *testing.T) {
	tests := []struct {
		name   string
		drop   string
		check  func(t *testing.T, f Facts)
		intact func(t *testing.T, f Facts)
	}{
		{
			name:  "no gold nuggets",
			drop:  "## Gold Nugget Quotes",
			check: func(t *testing.T, f Facts) { assert.Empty(t, f.Quotes) },
			intact: func(t *testing.T, f Facts) {
				assert.Len(t, f.VoiceOfCustomerQuotes, 1)
				assert.Len(t, f.Objections, 2)
			},
		},
		{
			name:  "no jobs to be done",
			drop:  "## Jobs To Be Done",
			check: func(t *testing.T, f Facts) { assert.Empty(t, f.JobsToBeDone.Functional) },
			intact: func(t *testing.T, f Facts) {
				assert.Len(t, f.Quotes, 3)
				assert.Len(t, f.CopyAnglesByTheme, 2)
			},
		},
		{
			name:  "no copy angles",
			drop:  "## Copy Angles by Theme",
			check: func(t *testing.T, f Facts) { assert.Empty(t, f.CopyAnglesByTheme) },
			intact: func(t *testing.T, f Facts) {
				assert.Len(t, f.VoiceOfCustomerQuotes, 1)
				assert.NotEmpty(t, f.EmotionalJobStatement)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Renaming the heading hides the section without changing layout.
			doc := strings.Replace(educatorDoc, tt.drop, "## Unrelated Notes", 1)
			f := Extract(doc)
			tt.check(t, f)
			tt.intact(t, f)
		})
	}
}

func TestExtract_EmotionalJobFallsBackToOneSentence(t *testing.T) {
	doc := `## Summary
### In One Sentence
**"I need to look awake for thirty kids by 7:45."**
`
	assert.Equal(t, "I need to look awake for thirty kids by 7:45.", Extract(doc).EmotionalJobStatement)
}

func TestExtract_EmotionalJobTruncated(t *testing.T) {
	doc := "### The Emotional Job\n" + strings.Repeat("x", 800) + "\n"
	assert.Len(t, Extract(doc).EmotionalJobStatement, MaxEmotionalJobLength)
}

func TestExtract_ThemeHeadingDrift(t *testing.T) {
	// Themes written at level 4 are not recognised and yield nothing.
	doc := `## Copy Angles by Theme
#### Theme 1: Drifted
**Static copy:** "This angle is never found"
`
	assert.Empty(t, Extract(doc).CopyAnglesByTheme)
}

func TestScan_Classification(t *testing.T) {
	doc := Scan("## Heading ##\n---\n* * *\ntext\n#hashtag\n")
	require.Len(t, doc.Lines, 5)

	assert.Equal(t, Line{Kind: KindHeading, Level: 2, Text: "Heading"}, doc.Lines[0])
	assert.Equal(t, KindRule, doc.Lines[1].Kind)
	assert.Equal(t, KindRule, doc.Lines[2].Kind)
	assert.Equal(t, KindText, doc.Lines[3].Kind)
	assert.Equal(t, KindText, doc.Lines[4].Kind)
}

func TestSection_StopsAtRuleAndHeading(t *testing.T) {
	doc := Scan("## A\none\n### sub\ntwo\n## B\nthree\n## C\nfour\n---\nfive\n")

	a := doc.Section(2, "a")
	require.Len(t, a, 3)
	assert.Equal(t, "two", a[2].Text)

	c := doc.Section(2, "C")
	require.Len(t, c, 1)
	assert.Equal(t, "four", c[0].Text)

	assert.Nil(t, doc.Section(2, "missing"))
}
