// Package sessionstore persists tracing sessions in badger.
//
// Values are JSON documents compressed with snappy, keyed by session name.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"

	"github.com/dd0wney/sewertrace/pkg/logging"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrInvalidName = errors.New("invalid session name")
	ErrClosed      = errors.New("session store closed")
)

const keyPrefix = "session/"

// Config locates the store. Path is ignored when InMemory is set.
type Config struct {
	Path     string
	InMemory bool
	Logger   logging.Logger
}

// Store saves and restores named session snapshots
type Store struct {
	db     *badger.DB
	logger logging.Logger
}

// badgerLogger routes badger's internal messages to our logger
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens or creates the store
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent session store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create session directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
		opts = opts.WithLogger(nil)
	} else {
		logger = logger.With(logging.Component("sessionstore"))
		opts = opts.WithLogger(badgerLogger{logger: logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func key(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return []byte(keyPrefix + name), nil
}

// Save stores v under name, replacing any previous value
func (s *Store) Save(name string, v any) error {
	k, err := key(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", name, err)
	}
	value := snappy.Encode(nil, raw)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	}); err != nil {
		return s.wrap("save", name, err)
	}

	s.logger.Debug("session saved", logging.Session(name), logging.Int("bytes", len(value)))
	return nil
}

// Load decodes the session called name into v
func (s *Store) Load(name string, v any) error {
	k, err := key(name)
	if err != nil {
		return err
	}

	var compressed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return s.wrap("load", name, err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("decompress session %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode session %s: %w", name, err)
	}
	return nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *Store) Delete(name string) error {
	k, err := key(name)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	}); err != nil {
		return s.wrap("delete", name, err)
	}
	return nil
}

// List returns the saved session names in order
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("list", "", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close flushes and closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) wrap(op, name string, err error) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%s session %s: %w", op, name, ErrClosed)
	default:
		return fmt.Errorf("%s session %s: %w", op, name, err)
	}
}
