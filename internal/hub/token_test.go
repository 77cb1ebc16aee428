package hub

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func signedToken(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Issuer: "hub"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("hub-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	got, ok, err := TokenExpiry(signedToken(t, &exp))
	if err != nil || !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, %v, %v; want %v", got, ok, err, exp)
	}

	if _, ok, err := TokenExpiry(signedToken(t, nil)); err != nil || ok {
		t.Errorf("token without exp: ok=%v err=%v", ok, err)
	}

	if _, _, err := TokenExpiry("not-a-jwt"); err == nil {
		t.Error("expected error for non-JWT token")
	}
}

func TestCheckToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	soon := now.Add(2 * time.Hour)
	later := now.Add(30 * 24 * time.Hour)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "expired", token: signedToken(t, &past), want: "expired"},
		{name: "expires soon", token: signedToken(t, &soon), want: "expires soon"},
		{name: "valid", token: signedToken(t, &later)},
		{name: "opaque", token: "opaque-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			checkToken(tt.token, 24*time.Hour, now, logger)

			if tt.want == "" {
				if len(logger.warns) != 0 {
					t.Errorf("unexpected warnings %v", logger.warns)
				}
				return
			}
			if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], tt.want) {
				t.Errorf("warnings = %v, want one containing %q", logger.warns, tt.want)
			}
		})
	}
}
