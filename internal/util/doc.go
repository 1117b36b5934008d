// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small file and text helpers shared by the config,
// storage and ui packages.
//
//	// Write a secret without ever leaving a partial file behind
//	err := util.WriteFileAtomic(path, data, 0600)
//
//	// One-line preview of a message for lists and logs
//	line := util.Preview(msg.RawContent, 40)
package util
