package credfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arven-dev/botfleet/internal/domain"
	"github.com/arven-dev/botfleet/internal/ports"
)

const (
	accountsDirMode  = 0o700
	accountFileMode  = 0o600
	delegatedFileExt = ".json"
	cookieFileExt    = ".txt"
)

// Store keeps one pretty-printed JSON record per account under a single
// directory. Cookie jars live alongside as .txt files and are read-only.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// recordSchema is the on-disk credential shape. It deliberately has no
// success field: the administrative flag from login results must never be
// persisted.
type recordSchema struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	UUID         string `json:"uuid"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
	HasGame      bool   `json:"hasGame"`
}

func (s *Store) Get(ctx context.Context, file string) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}

	path, err := s.pathFor(file)
	if err != nil {
		return domain.Credential{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Credential{}, fmt.Errorf("account %q: %w", file, domain.ErrCredentialNotFound)
		}
		return domain.Credential{}, fmt.Errorf("read account file %q: %w", file, err)
	}

	var record recordSchema
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Credential{}, fmt.Errorf("decode account file %q: %w", file, err)
	}

	return fromSchema(record), nil
}

// Save writes a full replacement record keyed by the credential's display
// name. Partial updates do not exist: a refresh replaces the whole file.
func (s *Store) Save(ctx context.Context, cred domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cred.Name == "" {
		return errors.New("credential display name is empty")
	}

	path, err := s.pathFor(cred.Name + delegatedFileExt)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(toSchema(cred), "", "    ")
	if err != nil {
		return fmt.Errorf("encode account record %q: %w", cred.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, accountsDirMode); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}

	if err := os.WriteFile(path, data, accountFileMode); err != nil {
		return fmt.Errorf("write account file %q: %w", cred.Name, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathFor(file)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete account file %q: %w", file, err)
	}

	return nil
}

// List returns the account references of the given kind. Delegated
// accounts are JSON records whose stored type matches; cookie accounts are
// every .txt jar in the directory.
func (s *Store) List(ctx context.Context, kind domain.AccountKind) ([]domain.AccountRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read accounts directory: %w", err)
	}

	var refs []domain.AccountRef
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		switch kind {
		case domain.KindCookieReplay:
			if strings.HasSuffix(name, cookieFileExt) {
				refs = append(refs, domain.AccountRef{File: name, Kind: domain.KindCookieReplay})
			}
		case domain.KindDelegated:
			if !strings.HasSuffix(name, delegatedFileExt) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.root, name))
			if err != nil {
				continue
			}
			var record recordSchema
			if err := json.Unmarshal(data, &record); err != nil {
				continue
			}
			if domain.AccountKind(record.Type) == domain.KindDelegated {
				refs = append(refs, domain.AccountRef{File: name, Kind: domain.KindDelegated})
			}
		}
	}

	return refs, nil
}

// ReadCookies returns the raw Netscape cookie jar for a cookie account.
func (s *Store) ReadCookies(ctx context.Context, file string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathFor(file)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("cookie jar %q: %w", file, domain.ErrCredentialNotFound)
		}
		return "", fmt.Errorf("read cookie jar %q: %w", file, err)
	}

	return string(data), nil
}

func (s *Store) pathFor(file string) (string, error) {
	trimmed := strings.TrimSpace(file)
	if trimmed == "" {
		return "", errors.New("account file name is empty")
	}

	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || strings.ContainsRune(cleaned, os.PathSeparator) {
		return "", fmt.Errorf("invalid account file name %q", file)
	}

	return filepath.Join(s.root, cleaned), nil
}

func toSchema(cred domain.Credential) recordSchema {
	return recordSchema{
		Type:         string(cred.Kind),
		Name:         cred.Name,
		UUID:         cred.IdentityID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt.UnixMilli(),
		HasGame:      cred.OwnsGame,
	}
}

func fromSchema(record recordSchema) domain.Credential {
	return domain.Credential{
		Kind:         domain.AccountKind(record.Type),
		Name:         record.Name,
		IdentityID:   record.UUID,
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    time.UnixMilli(record.ExpiresAt),
		OwnsGame:     record.HasGame,
	}
}
