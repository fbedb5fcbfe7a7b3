package ports

import (
	"context"

	"github.com/arven-dev/botfleet/internal/domain"
)

type CredentialStore interface {
	Get(ctx context.Context, file string) (domain.Credential, error)
	Save(ctx context.Context, cred domain.Credential) error
	Delete(ctx context.Context, file string) error
	List(ctx context.Context, kind domain.AccountKind) ([]domain.AccountRef, error)
	ReadCookies(ctx context.Context, file string) (string, error)
}
