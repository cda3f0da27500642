// Package fs persists trace snapshots as plain files under a root directory,
// one payload file plus one JSON sidecar per snapshot.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reservecore/internal/blob/core"
)

const sidecarExt = ".info.json"

// sidecar is the JSON document written next to each payload file. It carries
// the key so listings do not have to reconstruct it from the path.
type sidecar struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum"`
	Labels      map[string]string `json:"labels,omitempty"`
	StoredAt    time.Time         `json:"stored_at"`
}

// Store writes snapshots under root. Create-only semantics come from linking
// the finished temp file into place, which fails if the key is taken.
type Store struct {
	root string
}

// New roots a store at path, creating the directory when missing.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// checkKey accepts clean, relative, slash-separated keys only. Anything that
// could walk out of the root is rejected.
func checkKey(key string) error {
	if key == "" {
		return errors.New("snapshot key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("snapshot key %q must be a relative slash path", key)
	}
	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("snapshot key %q has an invalid path segment", key)
		}
	}
	return nil
}

func (s *Store) payloadPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if err := checkKey(key); err != nil {
		return core.Info{}, err
	}
	target := s.payloadPath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return core.Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	digest := sha256.New()
	size, err := io.Copy(tmp, io.TeeReader(r, digest))
	if err != nil {
		_ = tmp.Close()
		return core.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}

	// Linking is atomic and fails when the key is already taken, which is
	// exactly the create-only guarantee snapshots rely on.
	if err := os.Link(tmp.Name(), target); err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return core.Info{}, fmt.Errorf("snapshot %s already stored", key)
		}
		return core.Info{}, err
	}

	side := sidecar{
		Key:         key,
		Size:        size,
		ContentType: opts.ContentType,
		Checksum:    "sha256:" + hex.EncodeToString(digest.Sum(nil)),
		Labels:      copyLabels(opts.Metadata),
		StoredAt:    time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(target+sidecarExt, raw, 0o644); err != nil {
		return core.Info{}, err
	}
	return s.infoFrom(side), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return core.Info{}, nil, err
	}
	side, err := s.readSidecar(s.payloadPath(key) + sidecarExt)
	if err != nil {
		return core.Info{}, nil, err
	}
	file, err := os.Open(s.payloadPath(key))
	if err != nil {
		return core.Info{}, nil, err
	}
	return s.infoFrom(side), file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	if err := checkKey(key); err != nil {
		return core.Info{}, err
	}
	side, err := s.readSidecar(s.payloadPath(key) + sidecarExt)
	if err != nil {
		return core.Info{}, err
	}
	return s.infoFrom(side), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	target := s.payloadPath(key)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(target + sidecarExt)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, sidecarExt) {
			return nil
		}
		side, err := s.readSidecar(path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(side.Key, prefix) {
			out = append(out, s.infoFrom(side))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL hands back a file URL for local download tooling. Only reads
// can be signed against a filesystem store.
func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(s.payloadPath(key))
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (s *Store) readSidecar(path string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var side sidecar
	if err := json.Unmarshal(raw, &side); err != nil {
		return sidecar{}, err
	}
	return side, nil
}

func (s *Store) infoFrom(side sidecar) core.Info {
	return core.Info{
		Key:          side.Key,
		Size:         side.Size,
		ContentType:  side.ContentType,
		ETag:         side.Checksum,
		Metadata:     copyLabels(side.Labels),
		LastModified: side.StoredAt,
	}
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
