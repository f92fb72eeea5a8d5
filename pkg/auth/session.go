package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/storage"
)

// AccessTokenKey is the local store key holding the bearer token.
const AccessTokenKey = "accessToken"

// Session keeps the access token in the local store. It satisfies both the
// REST client's token store and the cart engine's authenticator.
type Session struct {
	store storage.Store
	logg  *logger.Logger
}

// NewSession wraps store. A nil logger discards output.
func NewSession(store storage.Store, logg *logger.Logger) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Session{store: store, logg: logg}, nil
}

// AccessToken returns the stored token or "" when none is stored.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, AccessTokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *Session) SetAccessToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("access token is empty")
	}
	return s.store.Set(ctx, AccessTokenKey, []byte(token))
}

func (s *Session) ClearAccessToken(ctx context.Context) error {
	return s.store.Delete(ctx, AccessTokenKey)
}

// IsAuthenticated reports whether a token is present. Expiry is left to the
// API, which answers 401 and triggers a refresh.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	token, err := s.AccessToken(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to read access token")
		return false
	}
	return token != ""
}

// Claims decodes the stored token. It returns nil, nil when signed out.
func (s *Session) Claims(ctx context.Context) (*AccessTokenClaims, error) {
	token, err := s.AccessToken(ctx)
	if err != nil || token == "" {
		return nil, err
	}
	return ParseUnverified(token)
}

// WithUserContext adds the signed-in user id to ctx's log fields when a
// readable token is stored.
func (s *Session) WithUserContext(ctx context.Context) context.Context {
	claims, err := s.Claims(ctx)
	if err != nil || claims == nil || claims.Identity() == "" {
		return ctx
	}
	return s.logg.WithUserID(ctx, claims.Identity())
}
