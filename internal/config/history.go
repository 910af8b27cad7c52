package config

import (
	"fmt"
	"io"

	"speech-analytics-go/internal/history"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenHistory builds the configured history store, wrapped with retries.
// The returned Closer releases the backend.
func (c *Config) OpenHistory() (history.Store, io.Closer, error) {
	switch c.HistoryBackend {
	case "memory":
		return history.NewRetrying(history.NewMemoryStore(), c.HistoryRetry), nopCloser{}, nil
	case "file", "":
		fs, err := history.NewFileStore(c.HistoryDir)
		if err != nil {
			return nil, nil, err
		}
		return history.NewRetrying(fs, c.HistoryRetry), nopCloser{}, nil
	case "sqlite":
		db, err := history.NewSQLiteStore(c.HistoryDSN)
		if err != nil {
			return nil, nil, err
		}
		return history.NewRetrying(db, c.HistoryRetry), db, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", errUnknownBackend, c.HistoryBackend)
}
