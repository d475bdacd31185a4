package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"touris/api/internal/config"
	"touris/api/internal/handlers"
	"touris/api/internal/models"
	"touris/api/internal/notify"
	"touris/api/internal/oauth"
	"touris/api/internal/ratelimit"
	"touris/api/internal/repository/repofake"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type discardNotifier struct{}

func (discardNotifier) Publish(context.Context, notify.Message) error { return nil }

type verifierMap map[string]oauth.GoogleIdentity

func (v verifierMap) Verify(_ context.Context, raw string) (oauth.GoogleIdentity, error) {
	identity, ok := v[raw]
	if !ok {
		return oauth.GoogleIdentity{}, errors.New("bad signature")
	}
	return identity, nil
}

type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *bucket) Upload(_ context.Context, ownerID, name string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := "avatars/" + ownerID + "/" + name
	b.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

type harness struct {
	cfg      *config.AppConfig
	clock    *clock
	accounts *service.AccountService
	router   *gin.Engine
}

func newHarness(t *testing.T, configure ...func(*config.AppConfig)) *harness {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "development",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret",
			JWTRefreshSecret: "refresh-secret",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    7 * 24 * time.Hour,
			JWTIssuer:        "touris-api",
			JWTAudience:      "touris-client",
			ResetTokenTTL:    30 * time.Minute,
			BcryptCost:       bcrypt.MinCost,
			AdminBcryptCost:  bcrypt.MinCost,
		},
		Storage:   config.StorageConfig{MaxUploadSize: 1 << 20},
		Notify:    config.NotifyConfig{ResetURL: "http://localhost:3000/reset-password"},
		RateLimit: config.RateLimitConfig{Enabled: true, Limit: 100, Window: 15 * time.Minute},
	}
	for _, fn := range configure {
		fn(cfg)
	}

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	users := repofake.NewUserRepo()
	partners := repofake.NewPartnerRepo()
	logger := zerolog.Nop()

	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Security.JWTAccessSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		AccessTTL:     cfg.Security.JWTAccessTTL,
		RefreshTTL:    cfg.Security.JWTRefreshTTL,
		Issuer:        cfg.Security.JWTIssuer,
		Audience:      cfg.Security.JWTAudience,
	}).WithClock(clk.Now)

	auth := service.NewAuthService(users, partners, tokens, discardNotifier{}, cfg, logger).WithClock(clk.Now)
	accounts := service.NewAccountService(users, partners, &bucket{objects: map[string][]byte{}}, cfg, logger)
	federation := service.NewFederationService(auth, verifierMap{
		"google-ok": {
			Subject:       "google-sub-1",
			Email:         "traveller@example.com",
			EmailVerified: true,
			GivenName:     "Tom",
		},
	}, logger)

	set := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Auth:       auth,
		Federation: federation,
		Accounts:   accounts,
		Tokens:     tokens,
		Limiter:    ratelimit.New(ratelimit.NewMemoryCounter(clk.Now), cfg.RateLimit.Limit, cfg.RateLimit.Window),
	})

	router := gin.New()
	set.Register(router.Group("/api"))

	return &harness{cfg: cfg, clock: clk, accounts: accounts, router: router}
}

type requestOption func(*http.Request)

func bearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cookies ...*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, cookie := range cookies {
			r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
		}
	}
}

func (h *harness) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Details []struct {
		Field string `json:"field"`
	} `json:"details"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

type sessionData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IsNewUser    *bool  `json:"isNewUser"`
	User         *struct {
		ID             string  `json:"id"`
		Email          string  `json:"email"`
		Role           string  `json:"role"`
		ProfilePicture *string `json:"profilePicture"`
	} `json:"user"`
	Partner *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"partner"`
}

func sessionOf(t *testing.T, rec *httptest.ResponseRecorder) sessionData {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	var data sessionData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func credentials(email, password string) gin.H {
	return gin.H{"email": email, "password": password}
}

func (h *harness) registerAlice(t *testing.T) sessionData {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":     "alice@example.com",
		"password":  "Passw0rd!",
		"firstName": "Alice",
		"lastName":  "Liddell",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionOf(t, rec)
}

func (h *harness) adminToken(t *testing.T) string {
	t.Helper()
	_, err := h.accounts.CreateUser(context.Background(), service.CreateUserInput{
		Email:    "root@example.com",
		Password: "Adm1nPass!",
		Role:     models.UserRoleAdmin,
	})
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/auth/login/admin", credentials("root@example.com", "Adm1nPass!"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionOf(t, rec).AccessToken
}

func TestRegisterLoginThenMe(t *testing.T) {
	h := newHarness(t)
	registered := h.registerAlice(t)
	require.NotNil(t, registered.User)
	assert.Equal(t, "USER", registered.User.Role)

	rec := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := sessionOf(t, rec)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"alice@example.com"`)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "refreshToken")
}

func TestLoginSetsHardenedCookies(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieNamed(rec, "accessToken")
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)
	assert.False(t, access.Secure, "secure is only set in production")

	refresh := cookieNamed(rec, "refreshToken")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), refresh.MaxAge)

	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, withCookies(access))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCookiesAreSecureInProduction(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.Environment = config.EnvironmentProduction })
	h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieNamed(rec, "accessToken")
	require.NotNil(t, access)
	assert.True(t, access.Secure)
}

func TestLoginFailureDoesNotRevealWhichPartWasWrong(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	unknown := h.do(t, http.MethodPost, "/api/auth/login", credentials("nobody@example.com", "Passw0rd!"))
	wrong := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Wr0ngPass!"))

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, wrong).Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", credentials("alice@example.com", "password"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
	require.Len(t, env.Details, 1)
	assert.Equal(t, "password", env.Details[0].Field)

	rec = h.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "eve@example.com",
		"password": "Passw0rd!",
		"role":     "ADMIN",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.registerAlice(t)
	rec = h.do(t, http.MethodPost, "/api/auth/register", credentials("ALICE@example.com", "Passw0rd!"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ACCOUNT_EXISTS", decode(t, rec).Code)
}

func TestRegisterRejectsPasswordsBcryptCannotHash(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", credentials("alice@example.com", "Aa1!"+strings.Repeat("x", 76)))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
	require.Len(t, env.Details, 1)
	assert.Equal(t, "password", env.Details[0].Field)
}

func TestRefreshLogoutCycle(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	login := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
	require.Equal(t, http.StatusOK, login.Code)
	session := sessionOf(t, login)
	refreshCookie := cookieNamed(login, "refreshToken")
	require.NotNil(t, refreshCookie)

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookies(refreshCookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, cookieNamed(rec, "accessToken"))
	assert.Nil(t, cookieNamed(rec, "refreshToken"), "refresh token is not rotated")

	rec = h.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(session.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, name := range []string{"accessToken", "refreshToken", "authToken"} {
		cleared := cookieNamed(rec, name)
		require.NotNil(t, cleared, name)
		assert.Negative(t, cleared.MaxAge, name)
	}

	rec = h.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(session.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")

	rec = h.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookies(refreshCookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", decode(t, rec).Code)
}

func TestSupersededRefreshTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	first := sessionOf(t, h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!")))
	second := sessionOf(t, h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!")))

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": second.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiryCodes(t *testing.T) {
	h := newHarness(t)
	session := h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.clock.Advance(16 * time.Minute)
	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, bearer(session.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode(t, rec).Code)

	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, bearer("garbage"))
	assert.Equal(t, "INVALID_TOKEN", decode(t, rec).Code)

	h.clock.Advance(8 * 24 * time.Hour)
	rec = h.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "REFRESH_TOKEN_EXPIRED", decode(t, rec).Code)
}

func TestPartnerNeedsApprovalBeforeLogin(t *testing.T) {
	h := newHarness(t)
	admin := h.adminToken(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":     "hotel@example.com",
		"password":  "Partn3r!x",
		"firstName": "Grand",
		"lastName":  "Hotel",
		"role":      "PARTNER",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/auth/login/partner", credentials("hotel@example.com", "Partn3r!x"))
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "PARTNER_NOT_APPROVED", env.Code)
	assert.Equal(t, "PENDING", env.Status)

	rec = h.do(t, http.MethodGet, "/api/admin/partners?status=pending", nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listing struct {
		Partners []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"partners"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &listing))
	require.Len(t, listing.Partners, 1)
	assert.Equal(t, "Grand Hotel", listing.Partners[0].Name)

	rec = h.do(t, http.MethodPut, "/api/admin/partners/"+listing.Partners[0].ID+"/status", gin.H{"status": "APPROVED"}, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/auth/login/partner", credentials("hotel@example.com", "Partn3r!x"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	partner := sessionOf(t, rec)
	require.NotNil(t, partner.Partner)
	assert.Equal(t, "APPROVED", partner.Partner.Status)

	rec = h.do(t, http.MethodGet, "/api/partner/account", nil, bearer(partner.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPut, "/api/admin/partners/"+listing.Partners[0].ID+"/status", gin.H{"status": "SUSPENDED"}, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/partner/account", nil, bearer(partner.AccessToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "SUSPENDED", decode(t, rec).Status)

	rec = h.do(t, http.MethodGet, "/api/partner/profile", nil, bearer(partner.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPartnerLoginUsesChangedPassword(t *testing.T) {
	h := newHarness(t)
	admin := h.adminToken(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "hotel@example.com",
		"password": "Partn3r!x",
		"role":     "partner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := sessionOf(t, rec)

	rec = h.do(t, http.MethodPut, "/api/auth/change-password", gin.H{
		"currentPassword": "Partn3r!x",
		"newPassword":     "Chang3d!x",
	}, bearer(registered.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/admin/partners?status=PENDING", nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listing struct {
		Partners []struct {
			ID string `json:"id"`
		} `json:"partners"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &listing))
	require.Len(t, listing.Partners, 1)

	rec = h.do(t, http.MethodPut, "/api/admin/partners/"+listing.Partners[0].ID+"/status", gin.H{"status": "APPROVED"}, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/auth/login/partner", credentials("hotel@example.com", "Partn3r!x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login/partner", credentials("hotel@example.com", "Chang3d!x"))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminLoginChecksRoleAfterPassword(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/login/admin", credentials("alice@example.com", "Wr0ngPass!"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login/admin", credentials("alice@example.com", "Passw0rd!"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserRoutesEnforceOwnershipAndAdmin(t *testing.T) {
	h := newHarness(t)
	alice := h.registerAlice(t)
	admin := h.adminToken(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", credentials("bob@example.com", "B0bPassw0rd!"))
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := sessionOf(t, rec)

	rec = h.do(t, http.MethodGet, "/api/users/"+bob.User.ID, nil, bearer(alice.AccessToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/users/"+alice.User.ID, gin.H{"country": "Portugal"}, bearer(alice.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"country":"Portugal"`)

	rec = h.do(t, http.MethodGet, "/api/users/"+bob.User.ID, nil, bearer(admin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/admin/users", credentials("staff@example.com", "St4ffPass!"), bearer(alice.AccessToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/admin/users", credentials("staff@example.com", "St4ffPass!"), bearer(admin))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPut, "/api/admin/users/"+bob.User.ID+"/role", gin.H{"role": "OWNER"}, bearer(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/users/"+bob.User.ID, nil, bearer(bob.AccessToken))
	assert.Equal(t, http.StatusForbidden, rec.Code, "only admins delete accounts")

	rec = h.do(t, http.MethodDelete, "/api/users/"+bob.User.ID, nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, bearer(bob.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted accounts no longer resolve")
}

func TestAdminUserAndPartnerLookups(t *testing.T) {
	h := newHarness(t)
	alice := h.registerAlice(t)
	admin := h.adminToken(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", gin.H{
		"email":    "hotel@example.com",
		"password": "Partn3r!x",
		"role":     "PARTNER",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type listing struct {
		Users []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"users"`
		Count int `json:"count"`
	}

	rec = h.do(t, http.MethodGet, "/api/users", nil, bearer(alice.AccessToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/users", nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var all listing
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &all))
	assert.Equal(t, 3, all.Count)
	assert.Len(t, all.Users, 3)

	rec = h.do(t, http.MethodGet, "/api/users/role/partner", nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var partners listing
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &partners))
	require.Len(t, partners.Users, 1)
	assert.Equal(t, "hotel@example.com", partners.Users[0].Email)
	assert.Equal(t, "PARTNER", partners.Users[0].Role)

	rec = h.do(t, http.MethodGet, "/api/users/role/OWNER", nil, bearer(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/users/"+alice.User.ID, nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"alice@example.com"`)

	rec = h.do(t, http.MethodGet, "/api/admin/users/missing", nil, bearer(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/partners", nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var pending struct {
		Partners []struct {
			ID string `json:"id"`
		} `json:"partners"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &pending))
	require.Len(t, pending.Partners, 1)

	rec = h.do(t, http.MethodGet, "/api/admin/partners/"+pending.Partners[0].ID, nil, bearer(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = h.do(t, http.MethodGet, "/api/admin/partners/missing", nil, bearer(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/request-reset", gin.H{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	unknown := decode(t, rec)

	rec = h.do(t, http.MethodPost, "/api/auth/request-reset", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	known := decode(t, rec)
	assert.Equal(t, unknown.Message, known.Message)

	var data struct {
		DevInfo struct {
			Token string `json:"token"`
		} `json:"devInfo"`
	}
	require.NoError(t, json.Unmarshal(known.Data, &data))
	require.NotEmpty(t, data.DevInfo.Token)

	reset := gin.H{"token": data.DevInfo.Token, "password": "N3wPassw0rd!"}
	rec = h.do(t, http.MethodPost, "/api/auth/reset-password", reset)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/auth/reset-password", reset)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RESET_TOKEN", decode(t, rec).Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "N3wPassw0rd!"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResetTokenIsHiddenInProduction(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.Environment = config.EnvironmentProduction })
	h.registerAlice(t)

	rec := h.do(t, http.MethodPost, "/api/auth/request-reset", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "devInfo")
}

func TestGoogleLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/google", gin.H{"idToken": "google-ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := sessionOf(t, rec)
	require.NotNil(t, first.IsNewUser)
	assert.True(t, *first.IsNewUser)
	assert.NotNil(t, cookieNamed(rec, "refreshToken"))

	rec = h.do(t, http.MethodPost, "/api/auth/google", gin.H{"idToken": "google-ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := sessionOf(t, rec)
	require.NotNil(t, second.IsNewUser)
	assert.False(t, *second.IsNewUser)
	assert.Equal(t, first.User.ID, second.User.ID)

	rec = h.do(t, http.MethodPost, "/api/auth/unlink-google", nil, bearer(second.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PASSWORD_REQUIRED", decode(t, rec).Code)

	rec = h.do(t, http.MethodPost, "/api/auth/google", gin.H{"idToken": "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_GOOGLE_TOKEN", decode(t, rec).Code)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	session := h.registerAlice(t)

	rec := h.do(t, http.MethodPut, "/api/auth/change-password", gin.H{
		"currentPassword": "Wr0ngPass!",
		"newPassword":     "N3wPassw0rd!",
	}, bearer(session.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CURRENT_PASSWORD", decode(t, rec).Code)

	rec = h.do(t, http.MethodPut, "/api/auth/change-password", gin.H{
		"currentPassword": "Passw0rd!",
		"newPassword":     "N3wPassw0rd!",
	}, bearer(session.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginIsRateLimited(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.RateLimit.Limit = 2 })

	for i := 0; i < 2; i++ {
		rec := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := h.do(t, http.MethodPost, "/api/auth/login", credentials("alice@example.com", "Passw0rd!"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = h.do(t, http.MethodPost, "/api/auth/request-reset", gin.H{"email": "alice@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code, "limits are tracked per route")
}

func TestUploadAvatar(t *testing.T) {
	h := newHarness(t)
	session := h.registerAlice(t)

	upload := func(content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("image", "avatar.bin")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/users/"+session.User.ID+"/avatar", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0x01}, 512)...)
	rec := upload(png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://cdn.example.com/avatars/"+session.User.ID+"/")

	rec = upload([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthWithoutBackends(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"disabled"`)
}
