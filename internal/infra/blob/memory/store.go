// Package memory holds trace snapshots in process memory. It backs tests and
// throwaway environments where nothing needs to survive a restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"reservecore/internal/blob/core"
)

type object struct {
	payload []byte
	info    core.Info
}

// Store keeps snapshots in a map keyed by artifact key.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]object
}

// New returns an empty in-memory snapshot store.
func New() *Store {
	return &Store{snapshots: make(map[string]object)}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a snapshot under a previously unused key.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.snapshots[key]; taken {
		return core.Info{}, fmt.Errorf("snapshot %s already stored", key)
	}
	info := core.Info{
		Key:          key,
		Size:         int64(len(payload)),
		ContentType:  opts.ContentType,
		Metadata:     copyLabels(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.snapshots[key] = object{payload: payload, info: info}
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.snapshots[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("snapshot %s not found", key)
	}
	payload := append([]byte(nil), obj.payload...)
	info := obj.info
	info.Metadata = copyLabels(info.Metadata)
	return info, io.NopCloser(bytes.NewReader(payload)), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.RLock()
	obj, ok := s.snapshots[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, fmt.Errorf("snapshot %s not found", key)
	}
	info := obj.info
	info.Metadata = copyLabels(info.Metadata)
	return info, nil
}

// Delete reports whether the key held a snapshot.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[key]; !ok {
		return false, nil
	}
	delete(s.snapshots, key)
	return true, nil
}

// List returns snapshots under the prefix in key order.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Info
	for key, obj := range s.snapshots {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		info := obj.info
		info.Metadata = copyLabels(info.Metadata)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL is not meaningful for an in-process store.
func (s *Store) PresignURL(context.Context, string, core.SignedURLOptions) (string, error) {
	return "", core.ErrUnsupported
}

func copyLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
