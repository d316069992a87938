package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const userIdContextKey contextKey = "userId"

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authHeader := r.Header.Get("Authorization")

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			app.unauthorizedResponse(w, r)
			return
		}

		userId, err := app.tokens.Verify(token)
		if err != nil {
			app.unauthorizedResponse(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIdContextKey, userId)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

// contextGetUserId must only be called below requireAuthentication.
func (app *application) contextGetUserId(r *http.Request) int {
	userId, ok := r.Context().Value(userIdContextKey).(int)
	if !ok {
		panic("missing user id in request context")
	}

	return userId
}
