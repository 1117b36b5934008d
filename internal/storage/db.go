// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/widgetsync/internal/util"
)

// keyCheck is sealed into the meta table to detect a wrong passphrase.
const keyCheck = "widgetsync-key-check"

// Schema is the database layout. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	agent_id        TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL DEFAULT '',
	access_token    BLOB,
	refresh_token   BLOB,
	lead            BLOB,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	sources         TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL DEFAULT 0,
	seq             INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_seq ON messages(conversation_id, seq);
`

// Options configures Open.
type Options struct {
	// Path is the database file.
	Path string
	// Passphrase seals tokens. When empty, KeyFile is used.
	Passphrase string
	// KeyFile holds a generated passphrase. Defaults to Path + ".key".
	KeyFile string
}

// DB is the local store. It is safe for concurrent use.
type DB struct {
	db     *sql.DB
	seal   *sealer
	logger *zap.Logger
}

// Open opens or creates the database at opts.Path.
func Open(opts Options, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	passphrase := opts.Passphrase
	if passphrase == "" {
		keyFile := opts.KeyFile
		if keyFile == "" {
			keyFile = opts.Path + ".key"
		}
		var err error
		if passphrase, err = loadOrCreateKeyFile(keyFile); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &DB{db: db, logger: logger}
	if err := s.initKey(passphrase); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(opts.Path, 0600)
	return s, nil
}

// initKey loads or creates the KDF salt and verifies the passphrase.
func (s *DB) initKey(passphrase string) error {
	salt, err := s.meta("kdf_salt")
	if err != nil {
		return err
	}
	fresh := salt == nil
	if fresh {
		if salt, err = randomBytes(SaltSize); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	seal, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}

	if fresh {
		check, err := seal.seal([]byte(keyCheck))
		if err != nil {
			return err
		}
		if err := s.setMeta("kdf_salt", salt); err != nil {
			return err
		}
		if err := s.setMeta("key_check", check); err != nil {
			return err
		}
	} else {
		check, err := s.meta("key_check")
		if err != nil {
			return err
		}
		plain, err := seal.open(check)
		if err != nil || !bytes.Equal(plain, []byte(keyCheck)) {
			return ErrKeyMismatch
		}
	}
	s.seal = seal
	return nil
}

func (s *DB) meta(key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *DB) setMeta(key string, value []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *DB) Close() error {
	return s.db.Close()
}

