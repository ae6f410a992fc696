package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	sharedauth "jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/users"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

const (
	msgGoogleDisabled   = "Вход через Google не настроен"
	msgGoogleBadState   = "Сессия входа устарела, попробуйте снова"
	msgGoogleUnverified = "У аккаунта Google нет подтверждённой почты"
	msgGoogleFailed     = "Не удалось получить профиль Google"
)

// GoogleConfig holds the OAuth client registration and where to send the
// browser afterwards.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	UIRedirectURL string
}

// GoogleAccounts creates or finds the local user for a Google identity.
type GoogleAccounts interface {
	CreateVerified(ctx context.Context, email string) (users.User, error)
}

type googleProfile struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
}

// GoogleService runs the authorization code flow with PKCE and redirects the
// browser to the UI carrying a regular token pair.
type GoogleService struct {
	oauth    *oauth2.Config
	ui       string
	accounts GoogleAccounts
	issuer   *sharedauth.Issuer
	States   StateStore

	fetchProfile func(ctx context.Context, code, verifier string) (googleProfile, error)
}

func NewGoogleService(cfg GoogleConfig, accounts GoogleAccounts, issuer *sharedauth.Issuer) *GoogleService {
	s := &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		ui:       cfg.UIRedirectURL,
		accounts: accounts,
		issuer:   issuer,
		States:   NewMemoryStates(),
	}
	s.fetchProfile = s.exchange
	return s
}

func (s *GoogleService) enabled() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != "" && s.oauth.RedirectURL != "" && s.ui != ""
}

func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth/google")
	g.GET("/start", s.start)
	g.GET("/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.enabled() {
		respond.Error(c, http.StatusNotImplemented, "google_disabled", msgGoogleDisabled, nil)
		return
	}
	state, verifier := uuid.NewString(), oauth2.GenerateVerifier()
	if err := s.States.Save(c.Request.Context(), state, verifier); err != nil {
		respond.Internal(c, fmt.Errorf("save oauth state: %w", err))
		return
	}
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))
}

func (s *GoogleService) callback(c *gin.Context) {
	ctx := c.Request.Context()
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", msgGoogleBadState, nil)
		return
	}
	verifier, ok, err := s.States.Take(ctx, state)
	if err != nil {
		respond.Internal(c, fmt.Errorf("take oauth state: %w", err))
		return
	}
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", msgGoogleBadState, nil)
		return
	}

	profile, err := s.fetchProfile(ctx, code, verifier)
	if err != nil {
		telemetry.Warn("auth.google_profile_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadGateway, "google_failed", msgGoogleFailed, nil)
		return
	}
	email := strings.TrimSpace(profile.Email)
	if email == "" || !profile.VerifiedEmail {
		respond.Error(c, http.StatusBadRequest, "google_unverified", msgGoogleUnverified, nil)
		return
	}

	user, err := s.accounts.CreateVerified(ctx, email)
	switch {
	case errors.Is(err, users.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_request", users.MsgCreateFailed, nil)
		return
	case err != nil:
		respond.Internal(c, err)
		return
	}
	pair, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		respond.Internal(c, err)
		return
	}
	target, err := appendTokens(s.ui, pair)
	if err != nil {
		respond.Internal(c, err)
		return
	}
	telemetry.Info("auth.google_login", map[string]any{"user_id": user.ID})
	c.Redirect(http.StatusFound, target)
}

func (s *GoogleService) exchange(ctx context.Context, code, verifier string) (googleProfile, error) {
	tok, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return googleProfile{}, fmt.Errorf("exchange code: %w", err)
	}
	resp, err := s.oauth.Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		return googleProfile{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("userinfo: decode: %w", err)
	}
	return p, nil
}

// appendTokens adds the pair to the UI redirect, keeping its existing query.
func appendTokens(rawURL string, pair sharedauth.Pair) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("bad UI redirect url %q", rawURL)
	}
	q := u.Query()
	q.Set("access_token", pair.AccessToken)
	q.Set("refresh_token", pair.RefreshToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
