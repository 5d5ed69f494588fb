package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// repoPrincipalStore adapts the bun-backed repositories to the narrow
// PrincipalStore and OneTimeTokenLedger interfaces the SessionManager
// consumes. One verification algorithm, parameterized by kind; no duplicated
// logic per identity table.
type repoPrincipalStore struct {
	repo RepositoryManager
}

// NewPrincipalStore wraps a RepositoryManager as a PrincipalStore.
func NewPrincipalStore(repo RepositoryManager) PrincipalStore {
	return &repoPrincipalStore{repo: repo}
}

// NewOneTimeTokenLedger wraps a RepositoryManager as a OneTimeTokenLedger.
func NewOneTimeTokenLedger(repo RepositoryManager) OneTimeTokenLedger {
	return &repoPrincipalStore{repo: repo}
}

var (
	_ PrincipalStore     = (*repoPrincipalStore)(nil)
	_ OneTimeTokenLedger = (*repoPrincipalStore)(nil)
)

func (s *repoPrincipalStore) FindByIdentifier(ctx context.Context, kind PrincipalKind, identifier string) (Principal, error) {
	switch kind {
	case KindUser:
		user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
		if err != nil {
			return Principal{}, s.translate(err)
		}
		return PrincipalFromUser(user), nil
	case KindStaff:
		staff, err := s.repo.Staff().GetByIdentifier(ctx, identifier)
		if err != nil {
			return Principal{}, s.translate(err)
		}
		return PrincipalFromStaff(staff), nil
	default:
		return Principal{}, goerrors.New("unknown principal kind", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": kind})
	}
}

func (s *repoPrincipalStore) FindByID(ctx context.Context, kind PrincipalKind, id uuid.UUID) (Principal, error) {
	switch kind {
	case KindUser:
		user, err := s.repo.Users().GetByID(ctx, id.String())
		if err != nil {
			return Principal{}, s.translate(err)
		}
		return PrincipalFromUser(user), nil
	case KindStaff:
		staff, err := s.repo.Staff().GetByID(ctx, id.String())
		if err != nil {
			return Principal{}, s.translate(err)
		}
		return PrincipalFromStaff(staff), nil
	default:
		return Principal{}, goerrors.New("unknown principal kind", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": kind})
	}
}

func (s *repoPrincipalStore) FindByEmail(ctx context.Context, kind PrincipalKind, email string) (Principal, error) {
	return s.FindByIdentifier(ctx, kind, email)
}

func (s *repoPrincipalStore) TouchLastLogin(ctx context.Context, kind PrincipalKind, id uuid.UUID) error {
	if kind == KindStaff {
		return s.repo.Staff().TouchLastLogin(ctx, id)
	}
	return s.repo.Users().TouchLastLogin(ctx, id)
}

func (s *repoPrincipalStore) ResetPassword(ctx context.Context, kind PrincipalKind, id uuid.UUID, passwordHash string) error {
	if kind == KindStaff {
		return s.translate(s.repo.Staff().ResetPassword(ctx, id, passwordHash))
	}
	return s.translate(s.repo.Users().ResetPassword(ctx, id, passwordHash))
}

func (s *repoPrincipalStore) MarkEmailVerified(ctx context.Context, kind PrincipalKind, id uuid.UUID) error {
	if kind == KindStaff {
		return s.translate(s.repo.Staff().MarkEmailVerified(ctx, id))
	}
	return s.translate(s.repo.Users().MarkEmailVerified(ctx, id))
}

func (s *repoPrincipalStore) Issue(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error) {
	return s.repo.OneTimeTokens().Issue(ctx, kind, ownerID, purpose, ttl)
}

func (s *repoPrincipalStore) Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	return s.repo.OneTimeTokens().Consume(ctx, token, purpose)
}

func (s *repoPrincipalStore) InvalidatePrior(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string) error {
	return s.repo.OneTimeTokens().InvalidatePrior(ctx, kind, ownerID, purpose)
}

// translate keeps repository not-found errors distinct from infrastructure
// failures so callers can fold them into the right taxonomy entry.
func (s *repoPrincipalStore) translate(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return ErrIdentityNotFound
	}
	return err
}
