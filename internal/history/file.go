package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"speech-analytics-go/internal/types"
)

// FileStore keeps one JSON document per comparison key. Appends rewrite the
// document through a temp file and a rename, so readers only ever see a
// complete document.
//
// A document carries its key next to the records so the key can be listed
// back from the file name's hash. Bare record arrays from older versions are
// still read.
type FileStore struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var (
	_ Store  = (*FileStore)(nil)
	_ Lister = (*FileStore)(nil)
)

type fileDoc struct {
	Key     string                   `json:"key"`
	Records []types.HistoricalRecord `json:"records"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	return &FileStore{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

func (fs *FileStore) Fetch(ctx context.Context, key string) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := fs.read(key)
	if err != nil {
		return nil, err
	}
	chronological(recs)
	return recs, nil
}

func (fs *FileStore) Append(ctx context.Context, key string, rec types.HistoricalRecord) error {
	if key == "" {
		return ErrEmptyKey
	}
	l := fs.lock(key)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	recs, err := fs.read(key)
	if err != nil {
		return err
	}
	if containsID(recs, rec.ID) {
		return nil
	}
	return writeJSON(fs.path(key), fileDoc{Key: key, Records: append(recs, rec)})
}

// Keys lists the comparison keys with at least one record.
func (fs *FileStore) Keys(ctx context.Context) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(fs.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := readDoc(p)
		if err != nil {
			return nil, err
		}
		if doc.Key != "" && len(doc.Records) > 0 {
			keys = append(keys, doc.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (fs *FileStore) lock(key string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, ok := fs.locks[key]
	if !ok {
		l = &sync.Mutex{}
		fs.locks[key] = l
	}
	return l
}

func (fs *FileStore) read(key string) ([]types.HistoricalRecord, error) {
	doc, err := readDoc(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return []types.HistoricalRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history %q: %w", key, err)
	}
	if doc.Records == nil {
		doc.Records = []types.HistoricalRecord{}
	}
	return doc.Records, nil
}

func readDoc(path string) (fileDoc, error) {
	var doc fileDoc
	b, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &doc.Records)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return doc, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// path maps a key onto a readable, collision-free file name.
func (fs *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(fs.dir, sanitize(key)+"-"+hex.EncodeToString(sum[:4])+".json")
}

func sanitize(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	return b.String()
}

func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
