package storage

import (
	"errors"
	"fmt"

	log "github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/config"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type DB struct {
	db *leveldb.DB
}

func InitDB(cfg *config.Config) (*DB, error) {
	dbPath := fmt.Sprintf("%s%s", cfg.DB.Path, "keyring.db")

	// Create DB directory if it does not exist
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		log.Error("Failed to open db: ", err)
		return nil, err
	}

	log.Info("Successfully opened db: ", dbPath)
	return &DB{db: db}, nil
}

// NewMemDB opens a LevelDB instance on in-memory storage.
func NewMemDB() (*DB, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(key []byte) ([]byte, error) {
	value, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set writes synchronously; a key blob must survive a crash right after create.
func (d *DB) Set(key, value []byte) error {
	if err := d.db.Put(key, value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

func (d *DB) Delete(key []byte) error {
	if err := d.db.Delete(key, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Keys lists stored keys under prefix
func (d *DB) Keys(prefix []byte) ([]string, error) {
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
