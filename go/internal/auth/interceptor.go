package auth

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

const bearerPrefix = "Bearer "

// NewInterceptor puts the caller's user id on the context. Requests without
// an Authorization header stay anonymous; a bad token is rejected.
func NewInterceptor(issuer *Issuer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			header := req.Header().Get("Authorization")
			if header == "" {
				return next(ctx, req)
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authorization header must be a bearer token"))
			}

			userID, err := issuer.Parse(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				log.Debug().
					Err(err).
					Str("procedure", req.Spec().Procedure).
					Msg("rejected token")
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithUserID(ctx, userID), req)
		}
	}
}
