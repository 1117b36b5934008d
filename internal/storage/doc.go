// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists widget sessions and confirmed history in a
// local SQLite database.
//
// A session record is kept per agent: the conversation id, the bearer
// tokens and the lead that obtained them. Tokens and the lead payload are
// sealed with AES-256-GCM under a key derived with PBKDF2 from a
// passphrase, which defaults to a random key file next to the database.
//
// History holds only server-confirmed messages, keyed by conversation and
// message id, so replaying a batch is harmless.
package storage
