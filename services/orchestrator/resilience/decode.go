// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resilience

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a reply contains no complete JSON object.
var ErrNoJSONObject = errors.New("no JSON object in response")

// ProviderCallFailure is one failed provider attempt: the call errored or
// its reply could not be decoded into the expected shape.
type ProviderCallFailure struct {
	Task string
	Err  error
}

func (e *ProviderCallFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

func (e *ProviderCallFailure) Unwrap() error { return e.Err }

// ExtractJSONObject returns the top-level JSON object opened by the first
// '{' in text. Braces inside strings and escaped quotes are skipped.
// Returns ErrNoJSONObject when text has no '{' or the first object never
// closes; later objects are not considered.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}
	end := matchObject(text, start)
	if end < 0 {
		return "", ErrNoJSONObject
	}
	return text[start:end], nil
}

// matchObject returns the index just past the brace closing the object
// opened at start, or -1.
func matchObject(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Validator is implemented by decoded values that check their own shape.
type Validator interface {
	Validate() error
}

// DecodeJSON extracts the JSON object from a model reply, decodes it into
// T and validates it when *T implements Validator. Every failure is a
// *ProviderCallFailure naming the task.
func DecodeJSON[T any](task, reply string) (T, error) {
	var v T
	raw, err := ExtractJSONObject(reply)
	if err != nil {
		return v, &ProviderCallFailure{Task: task, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, &ProviderCallFailure{Task: task, Err: fmt.Errorf("decode: %w", err)}
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, &ProviderCallFailure{Task: task, Err: err}
		}
	}
	return v, nil
}
