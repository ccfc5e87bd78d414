// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command copystudio runs the copy studio service.
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY (or OPENAI_API_KEY / GEMINI_API_KEY): provider
//     credential, with .env.local and /run/secrets as fallbacks
//   - COPYSTUDIO_PORT, COPYSTUDIO_TRAINING_DIR, COPYSTUDIO_DATA_DIR,
//     COPYSTUDIO_OTLP_ENDPOINT and the other COPYSTUDIO_* overrides
//
// # Usage
//
//	# Build
//	go build -o copystudio ./cmd/copystudio
//
//	# Run
//	./copystudio serve --port 12210
//
//	# Debug a persona document
//	./copystudio extract training-data/personas/the-dedicated-educator.md
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
