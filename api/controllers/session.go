package controllers

import (
	"context"
	"net/http"

	"github.com/nursingcollective/cartengine/api/responses"
	"github.com/nursingcollective/cartengine/api/validators"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

// TokenStore persists the bearer credential the remote cart API expects.
type TokenStore interface {
	SetAccessToken(ctx context.Context, token string) error
	ClearAccessToken(ctx context.Context) error
}

type loginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// SessionLogin stores the credential and merges the guest cart in one step.
func SessionLogin(engine CartEngine, tokens TokenStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokens == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session store unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token := validators.SanitizeString(payload.AccessToken, 0)

		res := engine.Login(r.Context(), func(ctx context.Context) error {
			return tokens.SetAccessToken(ctx, token)
		})
		writeResult(r.Context(), logg, w, engine.Mode(r.Context()), res)
	}
}

// SessionLogout drops the credential. The guest cart left on this device, if
// any, becomes the active cart again.
func SessionLogout(engine CartEngine, tokens TokenStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokens == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session store unavailable"))
			return
		}
		if err := tokens.ClearAccessToken(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear session"))
			return
		}
		res := engine.SyncFromServer(r.Context())
		writeResult(r.Context(), logg, w, engine.Mode(r.Context()), res)
	}
}
