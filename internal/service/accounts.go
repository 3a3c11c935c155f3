package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bcastroea/sapatariacapacita-backend/internal/access"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
	"github.com/bcastroea/sapatariacapacita-backend/internal/repository"
	"github.com/bcastroea/sapatariacapacita-backend/internal/validation"
)

// Credential — выпущенный токен и момент окончания его действия.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

var errInvalidLogin = model.Unauthenticated("invalid email or password")

// RegisterCustomer регистрирует нового клиента. Роль всегда CUSTOMER.
func (s *Service) RegisterCustomer(ctx context.Context, name, email, password string) (*model.Identity, error) {
	return s.createIdentity(ctx, name, email, password, model.RoleCustomer)
}

// EnsureAdmin создаёт администратора, если учётной записи с таким email ещё нет.
// Существующая запись с ролью клиента не повышается.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*model.Identity, bool, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, false, model.Validation("invalid email")
	}

	existing, err := s.repo.GetIdentityByEmail(ctx, normalized)
	switch {
	case err == nil:
		if existing.Role != model.RoleAdmin {
			return nil, false, fmt.Errorf("identity %s exists with role %s", normalized, existing.Role)
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("get identity: %w", err)
	}

	ident, err := s.createIdentity(ctx, name, normalized, password, model.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return ident, true, nil
}

func (s *Service) createIdentity(ctx context.Context, name, email, password string, role model.Role) (*model.Identity, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, model.Validation("invalid email")
	}
	if err := validation.Password(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &model.Identity{
		Name:         strings.TrimSpace(name),
		Email:        normalized,
		Role:         role,
		PasswordHash: hash,
	}

	if err := s.repo.CreateIdentity(ctx, ident); err != nil {
		if errors.Is(err, repository.ErrIdentityExists) {
			return nil, model.Conflict("email is already registered")
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	return ident, nil
}

// Login проверяет email и пароль и выпускает токен на час.
func (s *Service) Login(ctx context.Context, email, password string) (*Credential, error) {
	normalized, ok := validation.NormalizeEmail(email)
	if !ok || password == "" {
		return nil, errInvalidLogin
	}

	ident, err := s.repo.GetIdentityByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidLogin
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)); err != nil {
		return nil, errInvalidLogin
	}

	token, expiresAt, err := s.issuer.Issue(ident.ID, ident.Role)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	s.recorder.CredentialIssued()

	return &Credential{Token: token, ExpiresAt: expiresAt}, nil
}

// GetIdentity возвращает профиль владельцу или администратору.
func (s *Service) GetIdentity(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Identity, error) {
	if !access.OwnsOrMayBypass(caller, id) {
		return nil, model.Forbidden("you can only view your own account")
	}

	ident, err := s.repo.GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NotFound("client not found")
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

// ChangePassword заменяет пароль учётной записи id.
func (s *Service) ChangePassword(ctx context.Context, caller *model.IdentityContext, id int64, password string) error {
	if !access.OwnsOrMayBypass(caller, id) {
		return model.Forbidden("you can only update your own account")
	}
	if err := validation.Password(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdatePasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NotFound("client not found")
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
