package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Catalog discovers the ordered list of background media.
// Implementations can scan a directory, read a playlist, or hold a fixed list.
type Catalog interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// StaticCatalog is an in-memory Catalog, safe for concurrent use.
type StaticCatalog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStaticCatalog returns a catalog serving a copy of entries.
func NewStaticCatalog(entries ...Entry) *StaticCatalog {
	c := &StaticCatalog{}
	c.Set(entries)
	return c
}

// Set replaces the entry list.
func (c *StaticCatalog) Set(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append([]Entry(nil), entries...)
}

// Entries implements Catalog.Entries.
func (c *StaticCatalog) Entries(context.Context) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...), nil
}

// DirCatalog lists the supported media files of one directory, sorted by name.
// Subdirectories and unsupported files are skipped.
type DirCatalog struct {
	Dir string
}

// Entries implements Catalog.Entries.
func (c DirCatalog) Entries(ctx context.Context) ([]Entry, error) {
	if c.Dir == "" {
		return nil, nil
	}
	des, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("read media dir %q: %w", c.Dir, err)
	}

	names := make([]string, 0, len(des))
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, ok := KindOf(name)
		if !ok {
			continue
		}
		out = append(out, Entry{URL: filepath.Join(c.Dir, name), Kind: kind})
	}
	return out, nil
}

// PlaylistCatalog reads entries from an M3U playlist file.
type PlaylistCatalog struct {
	Path string
}

// Entries implements Catalog.Entries.
func (c PlaylistCatalog) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()
	return ParsePlaylist(f, filepath.Dir(c.Path))
}
