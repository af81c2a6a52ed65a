// Copyright 2024 The NCML Aggregation Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dimcache implements the disk-backed, size-bounded, file-locked
// dimension cache store : one small text file per member,
// validated by size and mtime, kept under a configured byte ceiling by
// evicting the least-recently-touched entries first.
package dimcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ncmlagg/aggserver/config"
	"github.com/ncmlagg/aggserver/logging"
	"github.com/ncmlagg/aggserver/member"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// Store is a process-local handle on the on-disk dimension cache. The
// sizes table orders entries by recency of touch so Load's purge-to-bound
// step can evict the coldest entries first; file content and presence
// are the real source of truth, sizes is a bookkeeping index over it.
type Store struct {
	cfg config.CacheConfig

	// mu is the process-level lock that serialises size-counter
	// updates; it never guards the per-entry file locks themselves,
	// only the in-process accounting around them.
	mu         sync.Mutex
	totalBytes int64
	sizes      *lru.Cache[string, int64]
}

// New validates cfg and returns a Store rooted at cfg.CacheDirectory,
// creating the directory if it does not already exist.
func New(cfg config.CacheConfig) (*Store, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, ncmlerrors.ErrCache.New(err.Error())
	}
	if err := os.MkdirAll(cfg.CacheDirectory, 0o755); err != nil {
		return nil, ncmlerrors.ErrCache.New(err.Error())
	}
	s := &Store{cfg: cfg}
	sizes, err := lru.NewWithEvict[string, int64](1<<20, s.onEvict)
	if err != nil {
		return nil, ncmlerrors.ErrCache.New(err.Error())
	}
	s.sizes = sizes
	return s, nil
}

// onEvict removes the evicted entry's backing file and subtracts its
// bytes from the running total. Called with mu already held.
func (s *Store) onEvict(entry string, size int64) {
	_ = os.Remove(entry)
	s.totalBytes -= size
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}
}

// mangle replaces characters that are unsafe in a filename: spaces and
// path separators both become '#'.
func mangle(memberLocalID string) string {
	r := strings.NewReplacer(" ", "#", "/", "#")
	return r.Replace(memberLocalID)
}

func (s *Store) entryPath(memberLocalID string) string {
	return filepath.Join(s.cfg.CacheDirectory, s.cfg.CachePrefix+mangle(memberLocalID))
}

func (s *Store) memberPath(memberLocalID string) string {
	if s.cfg.DataRootDir == "" {
		return memberLocalID
	}
	return filepath.Join(s.cfg.DataRootDir, memberLocalID)
}

// valid implements the freshness check : the entry file must
// exist with nonzero size, and the member's mtime must not be newer than
// the entry's. A member path that is not a regular file is always valid
// (nothing to compare against).
func (s *Store) valid(entry, memberPath string) (bool, error) {
	entryInfo, err := os.Stat(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if entryInfo.Size() == 0 {
		return false, nil
	}
	memberInfo, err := os.Stat(memberPath)
	if err != nil || !memberInfo.Mode().IsRegular() {
		return true, nil
	}
	return !memberInfo.ModTime().After(entryInfo.ModTime()), nil
}

// Load runs the per-member load protocol against h, whose location is
// interpreted relative to cfg.DataRootDir. It populates h's
// dimension cache either from the on-disk entry or, on a cold or stale
// entry, by loading and walking h's typed tree, in which case it also
// writes the entry back and may trigger an eviction pass.
func (s *Store) Load(ctx context.Context, h *member.Handle, memberLocalID string) error {
	log := logging.FromContext(ctx)
	entry := s.entryPath(memberLocalID)
	mpath := s.memberPath(memberLocalID)

	ok, err := s.valid(entry, mpath)
	if err != nil {
		return ncmlerrors.ErrCache.New(err.Error())
	}
	if !ok {
		s.purgeLocked(entry)
	} else if loaded, err := s.tryLoadShared(entry, h); err != nil {
		return err
	} else if loaded {
		return nil
	}

	if _, err := h.GetDataTree(ctx); err != nil {
		return ncmlerrors.WithLocation(err, memberLocalID)
	}

	fl := flock.New(entry)
	won, err := fl.TryLock()
	if err != nil {
		return ncmlerrors.ErrCache.New(err.Error())
	}
	if won {
		defer fl.Unlock()
		if err := s.writeEntry(entry, h); err != nil {
			return ncmlerrors.ErrCache.New(err.Error())
		}
		s.recordAndPurge(entry)
		return nil
	}

	log.WithField("member", memberLocalID).Debug("dimcache: entry being written concurrently, waiting for shared lock")
	if err := fl.RLock(); err != nil {
		return ncmlerrors.ErrCache.New(err.Error())
	}
	defer fl.Unlock()
	f, err := os.Open(entry)
	if err != nil {
		return ncmlerrors.ErrCache.New(err.Error())
	}
	defer f.Close()
	return h.LoadDimensionCache(f)
}

func (s *Store) tryLoadShared(entry string, h *member.Handle) (bool, error) {
	fl := flock.New(entry)
	got, err := fl.TryRLock()
	if err != nil {
		return false, ncmlerrors.ErrCache.New(err.Error())
	}
	if !got {
		return false, nil
	}
	defer fl.Unlock()
	f, err := os.Open(entry)
	if err != nil {
		return false, ncmlerrors.ErrCache.New(err.Error())
	}
	defer f.Close()
	if err := h.LoadDimensionCache(f); err != nil {
		return false, err
	}
	s.touch(entry)
	return true, nil
}

func (s *Store) writeEntry(entry string, h *member.Handle) error {
	f, err := os.Create(entry)
	if err != nil {
		return err
	}
	defer f.Close()
	return h.SaveDimensionCache(f)
}

func (s *Store) touch(entry string) {
	info, err := os.Stat(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sizes.Get(entry); !ok {
		s.totalBytes += info.Size()
	}
	s.sizes.Add(entry, info.Size())
}

// recordAndPurge records entry's current size and, if the running total
// now exceeds the configured ceiling, evicts the coldest entries until it
// no longer does .
func (s *Store) recordAndPurge(entry string) {
	info, err := os.Stat(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sizes.Get(entry); !ok {
		s.totalBytes += info.Size()
	}
	s.sizes.Add(entry, info.Size())
	max := s.cfg.MaxBytes()
	for s.totalBytes > max && s.sizes.Len() > 0 {
		s.sizes.RemoveOldest()
	}
}

func (s *Store) purgeLocked(entry string) {
	_ = os.Remove(entry)
	s.mu.Lock()
	if size, ok := s.sizes.Peek(entry); ok {
		s.totalBytes -= size
		if s.totalBytes < 0 {
			s.totalBytes = 0
		}
		s.sizes.Remove(entry)
	}
	s.mu.Unlock()
}

// PurgeOlderThan removes every cache entry whose file has not been
// modified within maxAge. This supplements : the original
// protocol only ever purges a single stale entry lazily on next access,
// with no sweep for entries that are never touched again.
func (s *Store) PurgeOlderThan(maxAge time.Duration) error {
	entries, err := os.ReadDir(s.cfg.CacheDirectory)
	if err != nil {
		return ncmlerrors.ErrCache.New(err.Error())
	}
	cutoff := time.Now().Add(-maxAge)
	for _, de := range entries {
		if de.IsDir() || !strings.HasPrefix(de.Name(), s.cfg.CachePrefix) {
			continue
		}
		path := filepath.Join(s.cfg.CacheDirectory, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.purgeLocked(path)
		}
	}
	return nil
}

// TotalBytes returns the store's current accounting of bytes under
// management, for diagnostics and tests.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}
