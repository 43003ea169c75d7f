package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r[jti], nil
}

func newManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret-0123456789",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "seatplanner-test",
	})
}

func protected(mgr *jwt.Manager, revoker RevocationChecker, roles ...string) *gin.Engine {
	r := gin.New()
	g := r.Group("/", JWTAuth(mgr, revoker))
	if len(roles) > 0 {
		g.Use(RoleAuth(roles...))
	}
	g.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	mgr := newManager()
	token, err := mgr.GenerateAccessToken("teacher-1", jwt.RoleTeacher)
	if err != nil {
		t.Fatalf("签发失败: %v", err)
	}
	claims, _ := mgr.ParseToken(token)

	tests := []struct {
		name    string
		header  string
		query   string
		revoked revokedSet
		want    int
	}{
		{"Bearer", "Bearer " + token, "", nil, http.StatusOK},
		{"QueryToken", "", "?access_token=" + token, nil, http.StatusOK},
		{"Missing", "", "", nil, http.StatusUnauthorized},
		{"BadScheme", "Token " + token, "", nil, http.StatusUnauthorized},
		{"Garbage", "Bearer not-a-jwt", "", nil, http.StatusUnauthorized},
		{"Revoked", "Bearer " + token, "", revokedSet{claims.ID: true}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var revoker RevocationChecker
			if tt.revoked != nil {
				revoker = tt.revoked
			}
			r := protected(mgr, revoker)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("期望 %d，实际 %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && w.Body.String() != "teacher-1" {
				t.Errorf("user_id 未注入: %q", w.Body.String())
			}
		})
	}
}

func TestRoleAuth(t *testing.T) {
	mgr := newManager()
	r := protected(mgr, nil, jwt.RoleAdmin)

	for role, want := range map[string]int{
		jwt.RoleAdmin:   http.StatusOK,
		jwt.RoleTeacher: http.StatusForbidden,
	} {
		token, _ := mgr.GenerateAccessToken("u", role)
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: 期望 %d，实际 %d", role, want, w.Code)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/echo", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("小请求体应通过，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("应透传 X-Request-ID，实际 %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 100))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("超长 ID 应被替换为 UUID，实际 %q", got)
	}
}

func TestRequestID_RejectsUnsafeCharacters(t *testing.T) {
	if validRequestID("abc\nfake=1") {
		t.Error("含换行的 ID 不应被接受")
	}
	if !validRequestID("gw-7f3a_01.b") {
		t.Error("合法 ID 应被接受")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/x", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("API 响应应禁止缓存")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少 nosniff")
	}
}
