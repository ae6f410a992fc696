package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
)

const (
	maxEmailLength     = 32
	defaultRecoveryTTL = 24 * time.Hour
)

type Service struct {
	Repo        repo.Store[User]
	Tokens      repo.Store[RecoveryToken]
	Cache       Cache
	Hasher      *auth.Hasher
	Mailer      Mailer
	FrontURL    string
	RecoveryTTL time.Duration

	now func() time.Time
}

func NewService(users repo.Store[User], tokens repo.Store[RecoveryToken], cache Cache, hasher *auth.Hasher) *Service {
	return &Service{
		Repo:        users,
		Tokens:      tokens,
		Cache:       cache,
		Hasher:      hasher,
		Mailer:      LogMailer{},
		RecoveryTTL: defaultRecoveryTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

type CreateInput struct {
	Email    string `json:"email" binding:"required,email,max=32"`
	Password string `json:"password" binding:"required,min=1,max=64"`
}

type UpdateInput struct {
	Email    *string `json:"email" binding:"omitempty,email,max=32"`
	Password *string `json:"password" binding:"omitempty,min=1,max=64"`
}

// Create registers a user and mails an email-verification token.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user := User{Email: email, Password: hash, IsActive: true}
	if err := s.Repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrConflict) || errors.Is(err, repo.ErrIntegrity) {
			return User{}, ErrCreate
		}
		return User{}, err
	}
	s.refreshCache(ctx, user)

	if _, err := s.SendToken(ctx, user, PurposeVerify); err != nil {
		telemetry.Warn("users.verify_token_failed", map[string]any{"user_id": user.ID, "error": err})
	}
	return user, nil
}

// CreateVerified registers a user whose email is already trusted, such as a Google sign-in.
func (s *Service) CreateVerified(ctx context.Context, email string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	existing, err := s.GetByEmail(ctx, email)
	if err == nil {
		if existing.IsVerified {
			return existing, nil
		}
		existing.IsVerified = true
		return s.save(ctx, existing)
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	hash, err := s.Hasher.Hash(uuid.NewString())
	if err != nil {
		return User{}, err
	}
	user := User{Email: email, Password: hash, IsActive: true, IsVerified: true}
	if err := s.Repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return s.GetByEmail(ctx, email)
		}
		return User{}, err
	}
	s.refreshCache(ctx, user)
	return user, nil
}

// Update changes the email and/or password of a user.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if in.Password != nil {
		if err := s.setPassword(&user, *in.Password); err != nil {
			return User{}, err
		}
	}
	return s.save(ctx, user)
}

// VerifyEmail consumes a verification token and marks its owner verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (User, error) {
	user, err := s.ConsumeToken(ctx, token, PurposeVerify)
	if err != nil {
		return User{}, err
	}
	user.IsVerified = true
	return s.save(ctx, user)
}

// ResetPassword consumes a reset token and stores the new password. A
// rejected password leaves the token usable.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (User, error) {
	var hashed User
	if err := s.setPassword(&hashed, password); err != nil {
		return User{}, err
	}
	user, err := s.ConsumeToken(ctx, token, PurposeReset)
	if err != nil {
		return User{}, err
	}
	user.Password = hashed.Password
	return s.save(ctx, user)
}

// Promote grants administrator rights to the user with email.
func (s *Service) Promote(ctx context.Context, email string) (User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if user.IsAdmin {
		return user, nil
	}
	user.IsAdmin = true
	return s.save(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, ErrNotFound
	}
	user, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, ErrNotFound
	}
	user, err := repo.First(ctx, s.Repo, repo.Filters{"email": email})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// Authenticate checks a password login. A wrong password and an unknown email
// are reported separately.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !s.Hasher.Compare(user.Password, password) {
		return User{}, auth.ErrBadCredentials
	}
	return user, nil
}

// LoadPrincipal resolves a token subject for the auth middleware, cache first.
func (s *Service) LoadPrincipal(ctx context.Context, id string) (auth.Principal, error) {
	if s.Cache != nil {
		user, ok, err := s.Cache.Get(ctx, id)
		if err != nil {
			telemetry.Warn("users.cache_get_failed", map[string]any{"user_id": id, "error": err})
		}
		if ok {
			return user.Principal(), nil
		}
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Principal{}, middleware.ErrPrincipalNotFound
		}
		return auth.Principal{}, err
	}
	s.refreshCache(ctx, user)
	return user.Principal(), nil
}

// SendToken issues a recovery token of purpose for user and mails the link.
func (s *Service) SendToken(ctx context.Context, user User, purpose string) (RecoveryToken, error) {
	token := RecoveryToken{
		UserID:  user.ID,
		Token:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		Purpose: purpose,
	}
	if err := s.Tokens.Create(ctx, &token); err != nil {
		return RecoveryToken{}, fmt.Errorf("create recovery token: %w", err)
	}

	subject, body := s.tokenMessage(purpose, token.Token)
	if s.Mailer != nil {
		if err := s.Mailer.Send(ctx, user.Email, subject, body); err != nil {
			return token, fmt.Errorf("send recovery token: %w", err)
		}
	}
	return token, nil
}

func (s *Service) tokenMessage(purpose, token string) (string, string) {
	front := strings.TrimRight(s.FrontURL, "/")
	if purpose == PurposeReset {
		return "Восстановление пароля",
			"Перейдите по ссылке для восстановления пароля\n" + front + "/password-recovery?token=" + token
	}
	return "Подтверждение email", "Confirm email\n" + front + "/verify-email/?token=" + token
}

// ConsumeToken validates a recovery token, marks it used and returns its owner.
func (s *Service) ConsumeToken(ctx context.Context, token, purpose string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrTokenNotFound
	}
	rt, err := repo.First(ctx, s.Tokens, repo.Filters{"token": token, "purpose": purpose})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return User{}, ErrTokenNotFound
		}
		return User{}, err
	}
	ttl := s.RecoveryTTL
	if ttl <= 0 {
		ttl = defaultRecoveryTTL
	}
	if rt.IsUsed || s.clock().After(rt.CreatedAt.Add(ttl)) {
		return User{}, ErrTokenExhausted
	}

	user, err := s.GetByID(ctx, rt.UserID)
	if err != nil {
		return User{}, err
	}
	rt.IsUsed = true
	if err := s.Tokens.Update(ctx, &rt); err != nil {
		return User{}, fmt.Errorf("mark token used: %w", err)
	}
	return user, nil
}

func (s *Service) setPassword(user *User, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidInput)
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user.Password = hash
	return nil
}

func (s *Service) save(ctx context.Context, user User) (User, error) {
	if err := s.Repo.Update(ctx, &user); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return User{}, ErrNotFound
		case errors.Is(err, repo.ErrConflict), errors.Is(err, repo.ErrIntegrity):
			return User{}, ErrCreate
		}
		return User{}, err
	}
	s.refreshCache(ctx, user)
	return user, nil
}

func (s *Service) refreshCache(ctx context.Context, user User) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, user); err != nil {
		telemetry.Warn("users.cache_set_failed", map[string]any{"user_id": user.ID, "error": err})
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLength {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return email, nil
}
