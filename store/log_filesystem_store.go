package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrBlankStoreLocation error = errors.New("storeLocation cannot be blank")
)

// LogFilesystemStore appends log text to a single file.
type LogFilesystemStore struct {
	mu            sync.Mutex
	storeLocation string
}

func (s *LogFilesystemStore) Append(contents []byte) error {
	if len(contents) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Open store for appending
	file, err := os.OpenFile(s.storeLocation, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	// Write store
	_, err = file.Write(contents)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *LogFilesystemStore) Location() string {
	return s.storeLocation
}

func (s *LogFilesystemStore) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.ReadFile(s.storeLocation)
}

func NewLogFilesystemStore(storeLocation string) (*LogFilesystemStore, error) {
	// Ensure store location is not blank
	if storeLocation == "" {
		return nil, ErrBlankStoreLocation
	}
	// Make sure the parent directory exists
	err := os.MkdirAll(filepath.Dir(storeLocation), 0755)
	if err != nil {
		return nil, err
	}
	store := &LogFilesystemStore{
		storeLocation: storeLocation,
	}
	return store, nil
}
