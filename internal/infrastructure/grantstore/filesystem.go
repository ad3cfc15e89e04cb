package grantstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/utils/grantid"
	"jan-server/services/grant-scout/utils/platformerrors"
)

const recordExt = ".json"

// compile-time check
var _ grant.Repository = (*Store)(nil)

// Store keeps one JSON document per grant record.
//
// Layout:
//
//	<baseDir>/<grant_id>.json
type Store struct {
	baseDir string
	now     func() time.Time
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create grant store dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir, now: time.Now}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.baseDir
}

// Ping reports whether the store directory is still present.
func (s *Store) Ping() error {
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.baseDir)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, id+recordExt)
}

// Save writes the whole record, replacing any existing file with the same id.
func (s *Store) Save(ctx context.Context, g *grant.Grant) error {
	if g == nil || !grantid.IsPathSafe(g.ID) {
		return platformerrors.NewStorageError(ctx, "invalid grant id", nil, "4b0f5a8e-2d7c-4e51-9a3f-7c18d2b6e904")
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return platformerrors.NewStorageError(ctx, "failed to encode grant", err, "8e2c91d4-5f0a-4b7e-a6c3-1d94f7e02b58")
	}

	tmp, err := os.CreateTemp(s.baseDir, g.ID+".*.tmp")
	if err != nil {
		return platformerrors.NewStorageError(ctx, "failed to create temp file", err, "c7a3e5f1-0b92-4d68-8e4a-5f2b1c9d7e36")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return platformerrors.NewStorageError(ctx, "failed to write grant", err, "1f6d8b2a-9e45-4c07-b3d1-a8e6c4f27095")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return platformerrors.NewStorageError(ctx, "failed to close grant file", err, "5a9e2c7d-3b18-4f64-9d0e-2c7b5a1f8e43")
	}
	if err := os.Rename(tmpName, s.path(g.ID)); err != nil {
		os.Remove(tmpName)
		return platformerrors.NewStorageError(ctx, "failed to rename grant file", err, "e3b7d1a9-6c24-4f80-8a5e-9d1c3f6b2a70")
	}
	return nil
}

// Get returns the record with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*grant.Grant, error) {
	if !grantid.IsPathSafe(id) {
		return nil, nil
	}
	g, err := s.readRecord(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, platformerrors.NewStorageError(ctx, "failed to read grant "+id, err, "9c4f1e6b-2a73-4d05-b8e9-6f3a2d7c1b84")
	}
	return g, nil
}

// Update replaces every mutable attribute of an existing record, keeping its id
// and creation time. It returns nil without writing when id does not exist.
func (s *Store) Update(ctx context.Context, id string, fields grant.Fields) (*grant.Grant, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	updatedAt := s.now().UTC()
	updated := &grant.Grant{
		ID:        existing.ID,
		Fields:    fields,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: &updatedAt,
	}
	if err := s.Save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns every readable record in file name order. Files that cannot be
// read or decoded are logged and skipped.
func (s *Store) List(ctx context.Context) ([]grant.Grant, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, platformerrors.NewStorageError(ctx, "failed to read grant store dir", err, "7d2a5f9c-1e68-4b34-a0c7-3e9b6d2f5a18")
	}

	grants := make([]grant.Grant, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		g, err := s.readRecord(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			log.Warn().
				Err(err).
				Str("file", entry.Name()).
				Msg("skipping unreadable grant file")
			continue
		}
		grants = append(grants, *g)
	}
	return grants, nil
}

// ListByCategory returns records whose category contains category, ignoring
// case. An empty category is the same as List.
func (s *Store) ListByCategory(ctx context.Context, category string) ([]grant.Grant, error) {
	grants, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return grant.FilterByCategory(grants, category), nil
}

// FindDuplicate returns the id of a stored record describing the same
// programme as candidate, or "" when there is none.
func (s *Store) FindDuplicate(ctx context.Context, candidate *grant.Grant) (string, error) {
	grants, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	return grant.FindDuplicate(candidate, grants), nil
}

func (s *Store) readRecord(path string) (*grant.Grant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g grant.Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if g.ID == "" {
		g.ID = strings.TrimSuffix(filepath.Base(path), recordExt)
	}
	return &g, nil
}
