// Package identity provides anonymous per-device operator identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"
)

const (
	OperatorCookieName = "drill_operator"
	OperatorHeaderName = "X-Drill-Operator"
	operatorCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	operatorKey contextKey = iota
	issuedKey
)

var operatorIDPattern = regexp.MustCompile(`^op_[a-f0-9]{32}$`)

// OperatorFromContext extracts the operator ID from the request context.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey).(string); ok {
		return v
	}
	return ""
}

// OperatorIssued reports whether the operator in ctx was minted for this
// request rather than presented by the client. A fresh ID says nothing
// about who is calling.
func OperatorIssued(ctx context.Context) bool {
	issued, _ := ctx.Value(issuedKey).(bool)
	return issued
}

// WithOperator returns ctx carrying operator.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

func generateOperatorID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate operator id: %w", err)
	}
	return "op_" + hex.EncodeToString(buf), nil
}

// IsValidOperatorID reports whether id has the operator ID format.
func IsValidOperatorID(id string) bool {
	return operatorIDPattern.MatchString(id)
}

func setOperatorCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     OperatorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(operatorCookieAge.Seconds()),
		Expires:  time.Now().Add(operatorCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// operatorFromRequest prefers an explicit header (CLI clients), then the
// cookie. A fresh ID is issued when neither is valid.
func operatorFromRequest(w http.ResponseWriter, r *http.Request, isDev bool) (id string, issued bool, err error) {
	if id := r.Header.Get(OperatorHeaderName); IsValidOperatorID(id) {
		return id, false, nil
	}
	if c, err := r.Cookie(OperatorCookieName); err == nil && IsValidOperatorID(c.Value) {
		setOperatorCookie(w, c.Value, isDev)
		return c.Value, false, nil
	}

	id, err = generateOperatorID()
	if err != nil {
		return "", false, err
	}
	setOperatorCookie(w, id, isDev)
	return id, true, nil
}

// Middleware attaches the operator identity to every request.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator, issued, err := operatorFromRequest(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish operator identity"}`, http.StatusInternalServerError)
				return
			}
			ctx := WithOperator(r.Context(), operator)
			if issued {
				ctx = context.WithValue(ctx, issuedKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
