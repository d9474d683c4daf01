package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/auth/jwt"
	"github.com/halolabs/memberd/internal/common/config"
	"github.com/halolabs/memberd/internal/core/level"
	"github.com/halolabs/memberd/internal/core/points"
	"github.com/halolabs/memberd/internal/core/recharge"
	"github.com/halolabs/memberd/internal/notify/email"
	"github.com/halolabs/memberd/internal/notify/sms"
	"github.com/halolabs/memberd/internal/storage"
	"github.com/halolabs/memberd/internal/sysconfig"
)

type testEnv struct {
	router *gin.Engine
	db     database.Database
	jwt    *jwt.Service
	app    *database.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	jwtService, err := jwt.NewService(config.JWTConfig{
		SecretKey:      "user-secret-key-0123456789abcdef0123",
		AdminSecretKey: "admin-secret-key-0123456789abcdef012",
		Duration:       config.Duration(time.Hour),
		AdminDuration:  config.Duration(time.Hour),
	})
	require.NoError(t, err)

	logger := zap.NewNop()
	configs := sysconfig.NewLoader(db, logger, nil)
	files, err := storage.NewLocalProvider(t.TempDir(), "/uploads")
	require.NoError(t, err)

	upload := config.UploadConfig{
		MaxFileSize:  5 * 1024 * 1024,
		AllowedTypes: []string{"jpg", "png"},
	}
	pointsEngine := points.NewEngine(db, level.NewResolver(db), logger, nil)
	rechargeEngine := recharge.NewEngine(db, logger, nil)

	h := NewHandler(db, jwtService, pointsEngine, rechargeEngine, configs,
		files, upload, email.NewSender(configs, logger), sms.NewSender(configs, logger), logger)
	router := gin.New()
	h.RegisterRoutes(router)

	app := &database.App{
		AppID:      "app_test",
		AppName:    "Test App",
		AppSecret:  "secret",
		LoginMode:  database.LoginModePassword,
		ChargeMode: database.ChargeModeFree,
		Status:     database.StatusActive,
	}
	require.NoError(t, db.CreateApp(context.Background(), app))
	require.NoError(t, db.CreateLevel(context.Background(), &database.MemberLevel{
		LevelName: "Base", LevelValue: 1, MinPoints: 0, Discount: 1, Status: database.StatusActive,
	}))

	return &testEnv{router: router, db: db, jwt: jwtService, app: app}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) appHeaders() map[string]string {
	return map[string]string{"X-App-Id": e.app.AppID, "X-App-Secret": e.app.AppSecret}
}

func (e *testEnv) registerUser(t *testing.T, username, password string) (string, uint) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": username, "password": password,
	}, e.appHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID uint `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Token, resp.Data.User.ID
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	token, userID := env.registerUser(t, "alice", "password1")
	assert.NotEmpty(t, token)
	assert.NotZero(t, userID)

	// Duplicate username in the same app is rejected.
	w := env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice", "password": "password1",
	}, env.appHeaders())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user_already_exists", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice", "password": "password1",
	}, env.appHeaders())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice", "password": "wrong",
	}, env.appHeaders())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))
}

func TestAppCredentialRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice", "password": "password1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "app_unauthorized", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice", "password": "password1",
	}, map[string]string{"X-App-Id": env.app.AppID, "X-App-Secret": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPointsFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice", "password1")

	w := env.do(t, http.MethodPost, "/api/v1/points/add", map[string]any{
		"points": 100, "description": "signup",
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/points/deduct", map[string]any{
		"points": 30,
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Points int64 `json:"points"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 70, resp.Data.Points)

	// Overdraw is rejected with the balance intact.
	w = env.do(t, http.MethodPost, "/api/v1/points/deduct", map[string]any{
		"points": 1000,
	}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient_points", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/points/records?page=1&limit=10", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Data.Total)
}

func TestRedeemCardFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice", "password1")

	hash, err := bcrypt.GenerateFromPassword([]byte("cardpw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, env.db.CreateCard(context.Background(), &database.RechargeCard{
		CardNo:       "C100",
		CardPassword: string(hash),
		ExpiresDays:  30,
		Points:       50,
		Status:       database.CardStatusUnused,
	}))

	w := env.do(t, http.MethodPost, "/api/v1/recharge/card", map[string]string{
		"card_no": "C100", "card_password": "cardpw",
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			ExpiresDays int   `json:"expires_days"`
			TotalPoints int64 `json:"total_points"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.Data.ExpiresDays)
	assert.EqualValues(t, 50, resp.Data.TotalPoints)

	// Second redemption fails.
	w = env.do(t, http.MethodPost, "/api/v1/recharge/card", map[string]string{
		"card_no": "C100", "card_password": "cardpw",
	}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "card_already_used", errorCode(t, w))
}

func TestMemberGate(t *testing.T) {
	env := newTestEnv(t)
	env.app.ChargeMode = database.ChargeModePaid
	require.NoError(t, env.db.UpdateApp(context.Background(), env.app))

	token, userID := env.registerUser(t, "alice", "password1")

	// Never a member.
	w := env.do(t, http.MethodGet, "/api/v1/users/member/verify", nil, bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_a_member", errorCode(t, w))

	// Lapsed membership carries the expiry detail.
	user, err := env.db.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	user.MemberExpiresAt = &past
	require.NoError(t, env.db.UpdateUser(context.Background(), user))

	w = env.do(t, http.MethodGet, "/api/v1/users/member/verify", nil, bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "membership_expired", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "member_expires_at")

	// Active membership passes.
	future := time.Now().Add(time.Hour)
	user.MemberExpiresAt = &future
	require.NoError(t, env.db.UpdateUser(context.Background(), user))

	w = env.do(t, http.MethodGet, "/api/v1/users/member/verify", nil, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
}

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, env.db.CreateAdmin(context.Background(), &database.Admin{
		Username: "root", Password: string(hash), Role: "admin", Status: database.StatusActive,
	}))

	w := env.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": "root", "password": "admin123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Token
}

func TestAdminBatchCreateCards(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	w := env.do(t, http.MethodPost, "/api/v1/admin/cards/batch", map[string]any{
		"count": 3, "expires_days": 30, "points": 10,
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Cards []struct {
				CardNo       string `json:"card_no"`
				CardPassword string `json:"card_password"`
			} `json:"cards"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Cards, 3)
	for _, card := range resp.Data.Cards {
		assert.NotEmpty(t, card.CardNo)
		assert.NotEmpty(t, card.CardPassword)

		// Stored hash never matches the plaintext.
		stored, err := env.db.GetCardByNo(context.Background(), card.CardNo)
		require.NoError(t, err)
		assert.NotEqual(t, card.CardPassword, stored.CardPassword)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.CardPassword), []byte(card.CardPassword)))
	}
}

func TestAdminAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/admin/members", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A user token never passes admin auth.
	userToken, _ := env.registerUser(t, "alice", "password1")
	w = env.do(t, http.MethodGet, "/api/v1/admin/members", nil, bearer(userToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminUpdateConfigsReloads(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	w := env.do(t, http.MethodPut, "/api/v1/admin/configs", map[string]any{
		"configs": map[string]string{
			sysconfig.KeySMSEnabled: "true",
			sysconfig.KeySMSSign:    "Memberd",
		},
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rows, err := env.db.ListSystemConfigs(context.Background(), sysconfig.KeySMSEnabled)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "true", rows[0].ConfigValue)
}

func TestCreateOrderEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice", "password1")

	w := env.do(t, http.MethodPost, "/api/v1/recharge/order", map[string]any{
		"expires_days": 30, "payment_method": "alipay",
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			OrderNo string `json:"order_no"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.OrderNo)
	assert.Equal(t, database.RechargeStatusPending, resp.Data.Status)

	// Unsupported payment methods are rejected at binding.
	w = env.do(t, http.MethodPost, "/api/v1/recharge/order", map[string]any{
		"expires_days": 30, "payment_method": "cash",
	}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice", "password1")

	w := env.do(t, http.MethodGet, "/api/v1/users/profile", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)
	// Password hashes never serialize.
	assert.NotContains(t, w.Body.String(), `"password"`)

	newEmail := "alice@example.com"
	w = env.do(t, http.MethodPut, "/api/v1/users/profile", map[string]any{
		"email": newEmail,
	}, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), newEmail)

	w = env.do(t, http.MethodGet, "/api/v1/users/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
