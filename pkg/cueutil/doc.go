// SPDX-License-Identifier: MPL-2.0

// Package cueutil parses CUE input against an embedded schema.
//
// The bridge validates its config file this way: the schema ships inside
// the binary, the user's file is unified with it, and the result decodes
// into a Go value. Errors carry the CUE field path and filename so the
// user can find the offending line.
//
// # Usage
//
//	//go:embed config_schema.cue
//	var configSchema string
//
//	overlay, err := cueutil.ParseAndDecode[map[string]any](
//	    configSchema,
//	    userFileBytes,
//	    "#Config",
//	    cueutil.WithFilename("config.cue"),
//	    cueutil.WithConcrete(false),
//	)
package cueutil
