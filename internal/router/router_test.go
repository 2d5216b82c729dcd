package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack/internal/auth"
	"nutritrack/internal/cache"
	"nutritrack/internal/config"
	"nutritrack/internal/db"
	"nutritrack/internal/handler"
	"nutritrack/internal/logger"
	"nutritrack/internal/middleware"
	"nutritrack/internal/repository"
	"nutritrack/internal/service"
)

type testApp struct {
	e     *echo.Echo
	users service.UserService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithRedis(t, nil)
}

// newTestAppWithRedis keeps refresh tokens and cached reads in rdb when it is
// set, and in SQLite otherwise.
func newTestAppWithRedis(t *testing.T, rdb *redis.Client) *testApp {
	t.Helper()
	gormDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{StorageTimeout: 5 * time.Second, DayLocation: time.UTC}
	userRepo := repository.NewUserRepository(gormDB)
	productRepo := repository.NewProductRepository(gormDB)
	jwtService := auth.NewJWTService("access-secret", "refresh-secret", 0)
	var ledger auth.Ledger = repository.NewRefreshTokenRepository(gormDB)
	var cacheClient *cache.Client
	if rdb != nil {
		ledger = auth.NewRedisLedger(rdb)
		cacheClient = cache.New(rdb)
	}
	authService := service.NewAuthService(userRepo, jwtService, ledger, cfg.StorageTimeout)
	userService := service.NewUserService(userRepo, authService, cacheClient, cfg.StorageTimeout)
	productService := service.NewProductService(productRepo, cacheClient, cfg.StorageTimeout)
	consumptionService := service.NewConsumptionService(repository.NewUserProductRepository(gormDB), productRepo, cfg.DayLocation, cfg.StorageTimeout)

	e := echo.New()
	Register(e, cfg, logger.Nop(), authService, rdb,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		handler.NewProductHandler(productService),
		handler.NewSeedHandler(productService),
		handler.NewConsumptionHandler(consumptionService),
	)
	return &testApp{e: e, users: userService}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// login registers (if needed) and logs in, returning the token pair.
func (a *testApp) login(t *testing.T, username, password string) service.TokenPair {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users/login", map[string]string{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair service.TokenPair
	decode(t, rec, &pair)
	return pair
}

func (a *testApp) register(t *testing.T, username string) service.TokenPair {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users/register", map[string]string{
		"username": username, "password": "password123", "email": username + "@example.com",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return a.login(t, username, "password123")
}

func (a *testApp) admin(t *testing.T) service.TokenPair {
	t.Helper()
	_, err := a.users.EnsureAdmin(context.Background(), "root", "rootpass", "root@example.com")
	require.NoError(t, err)
	return a.login(t, "root", "rootpass")
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegister(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{"username": "alice", "password": "password123", "email": "alice@example.com"}

	rec := app.do(t, http.MethodPost, "/users/register", body, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User created"}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/users/register", body, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/users/register", map[string]string{"username": "bob", "password": "x", "email": "alice@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/users/register", map[string]string{"username": "carol", "email": "carol@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice")

	rec := app.do(t, http.MethodPost, "/users/login", map[string]string{"username": "alice", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair service.TokenPair
	decode(t, rec, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	var jwtCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AccessCookie {
			jwtCookie = c
		}
	}
	require.NotNil(t, jwtCookie)
	assert.Equal(t, pair.AccessToken, jwtCookie.Value)
	assert.True(t, jwtCookie.HttpOnly)
	assert.Equal(t, 86400, jwtCookie.MaxAge)

	wrong := app.do(t, http.MethodPost, "/users/login", map[string]string{"username": "alice", "password": "nope"}, "")
	unknown := app.do(t, http.MethodPost, "/users/login", map[string]string{"username": "nobody", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	rec = app.do(t, http.MethodPost, "/users/login", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	t.Run("sql ledger", func(t *testing.T) {
		testRefreshAndLogout(t, newTestApp(t))
	})
	t.Run("redis ledger", func(t *testing.T) {
		srv := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		testRefreshAndLogout(t, newTestAppWithRedis(t, rdb))
		for _, key := range srv.Keys() {
			assert.False(t, strings.HasPrefix(key, "refresh_token:"), key)
		}
	})
}

func testRefreshAndLogout(t *testing.T, app *testApp) {
	pair := app.register(t, "alice")
	token := map[string]string{"token": pair.RefreshToken}

	rec := app.do(t, http.MethodPost, "/users/refresh", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed handler.RefreshResponse
	decode(t, rec, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/users/me", nil, refreshed.AccessToken).Code)

	rec = app.do(t, http.MethodDelete, "/users/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User successfully logout"}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/users/refresh", token, "").Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/users/logout", token, "").Code)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/users/refresh", map[string]string{}, "").Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodDelete, "/users/logout", map[string]string{}, "").Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/users/refresh", map[string]string{"token": "forged"}, "").Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/users/logout", map[string]string{"token": "forged"}, "").Code)
}

func TestAccessGate(t *testing.T) {
	app := newTestApp(t)
	pair := app.register(t, "alice")

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/products?name=pom", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/products?name=pom", nil, "garbage").Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/products?name=pom", nil, pair.RefreshToken).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/products?name=pom", nil, pair.AccessToken).Code)
}

func TestProducts(t *testing.T) {
	app := newTestApp(t)
	user := app.register(t, "alice")
	admin := app.admin(t)
	tomato := map[string]interface{}{"name": "Pomidor", "kcal": 19, "carbs": 4.1, "prots": 0.9, "fats": 0.2}

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/products", tomato, user.AccessToken).Code)

	rec := app.do(t, http.MethodPost, "/products", tomato, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ID   string  `json:"id"`
		Name string  `json:"name"`
		Kcal float64 `json:"kcal"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Pomidor", created.Name)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/products", map[string]interface{}{"name": "ab"}, admin.AccessToken).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/products", map[string]interface{}{"name": "Pomidor", "kcal": -1}, admin.AccessToken).Code)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/products?name=ab", nil, user.AccessToken).Code)
	rec = app.do(t, http.MethodGet, "/products?name=POMI", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pomidor")

	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/products/"+created.ID, nil, user.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/products/not-an-id", nil, user.AccessToken).Code)

	rec = app.do(t, http.MethodPatch, "/products/"+created.ID, map[string]interface{}{"kcal": 21}, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &created)
	assert.Equal(t, 21.0, created.Kcal)
	assert.Equal(t, "Pomidor", created.Name)

	rec = app.do(t, http.MethodPost, "/products/seed", []map[string]interface{}{
		{"name": "Ziemniaki", "kcal": 77, "carbs": 17.5, "prots": 2.1, "fats": 0.1},
		{"name": "Woda", "kcal": 0, "carbs": 0, "prots": 0, "fats": 0},
	}, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Products seeded successfully","count":2}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/products/seed", []map[string]interface{}{
		{"name": "Mleko", "kcal": 64},
	}, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodGet, "/products?name=mleko", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateProductRequiresEveryNutrient(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)

	bodies := map[string]map[string]interface{}{
		"no nutrients":  {"name": "Mystery"},
		"null kcal":     {"name": "Mystery", "kcal": nil, "carbs": 1, "prots": 1, "fats": 1},
		"fats omitted":  {"name": "Mystery", "kcal": 1, "carbs": 1, "prots": 1},
		"carbs omitted": {"name": "Mystery", "kcal": 1, "prots": 1, "fats": 1},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/products", body, admin.AccessToken)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := app.do(t, http.MethodPost, "/products", map[string]interface{}{"name": "Woda", "kcal": 0, "carbs": 0, "prots": 0, "fats": 0}, admin.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

type dayBody struct {
	UserProducts []struct {
		ID       string  `json:"id"`
		Quantity float64 `json:"quantity"`
		Product  struct {
			Kcal float64 `json:"kcal"`
		} `json:"product"`
	} `json:"userProducts"`
	Summary struct {
		Kcal  float64 `json:"kcal"`
		Carbs float64 `json:"carbs"`
		Prots float64 `json:"prots"`
		Fats  float64 `json:"fats"`
	} `json:"summary"`
	Meals []struct {
		Type string `json:"type"`
	} `json:"meals"`
}

func TestConsumptionFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")
	admin := app.admin(t)

	rec := app.do(t, http.MethodPost, "/products", map[string]interface{}{"name": "test", "kcal": 10, "carbs": 10, "prots": 10, "fats": 10}, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var product struct {
		ID string `json:"id"`
	}
	decode(t, rec, &product)

	rec = app.do(t, http.MethodPost, "/", map[string]interface{}{
		"productId": product.ID, "quantity": 20, "date": "2021-05-28T08:00:00Z", "type": "breakfast",
	}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entry struct {
		ID      string `json:"id"`
		Product struct {
			Kcal  float64 `json:"kcal"`
			Carbs float64 `json:"carbs"`
		} `json:"product"`
	}
	decode(t, rec, &entry)
	assert.Equal(t, 2.0, entry.Product.Kcal)
	assert.Equal(t, 2.0, entry.Product.Carbs)

	rec = app.do(t, http.MethodPost, "/", map[string]interface{}{
		"productId": product.ID, "quantity": 10, "date": "2021-05-28T19:00:00Z",
	}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/", map[string]interface{}{"productId": "abc", "quantity": 10}, alice.AccessToken).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/", map[string]interface{}{"productId": product.ID, "quantity": 0}, alice.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodPost, "/", map[string]interface{}{"productId": "6f1c1b0e-0000-4000-8000-000000000000", "quantity": 10}, alice.AccessToken).Code)

	rec = app.do(t, http.MethodGet, "/2021-05-28", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayBody
	decode(t, rec, &day)
	require.Len(t, day.UserProducts, 2)
	assert.Equal(t, 3.0, day.Summary.Kcal)
	assert.Equal(t, 3.0, day.Summary.Fats)
	assert.Nil(t, day.Meals)

	rec = app.do(t, http.MethodGet, "/2021-05-28?group=meal", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	day = dayBody{}
	decode(t, rec, &day)
	require.Len(t, day.Meals, 2)
	assert.Equal(t, "breakfast", day.Meals[0].Type)
	assert.Equal(t, "unspecified", day.Meals[1].Type)

	rec = app.do(t, http.MethodGet, "/2021-05-28", nil, bob.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	day = dayBody{}
	decode(t, rec, &day)
	assert.Empty(t, day.UserProducts)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/test", nil, alice.AccessToken).Code)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPatch, "/"+entry.ID, map[string]interface{}{}, alice.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodPatch, "/"+entry.ID, map[string]interface{}{"quantity": 5}, bob.AccessToken).Code)
	rec = app.do(t, http.MethodPatch, "/"+entry.ID, map[string]interface{}{"quantity": 50}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &entry)
	assert.Equal(t, 5.0, entry.Product.Kcal)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/"+entry.ID, nil, bob.AccessToken).Code)
	assert.Equal(t, http.StatusNoContent, app.do(t, http.MethodDelete, "/"+entry.ID, nil, alice.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/"+entry.ID, nil, alice.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/not-an-id", nil, alice.AccessToken).Code)
}

func TestDeletingProductCascades(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	admin := app.admin(t)

	rec := app.do(t, http.MethodPost, "/products", map[string]interface{}{"name": "Pomidor", "kcal": 19, "carbs": 4.1, "prots": 0.9, "fats": 0.2}, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var product struct {
		ID string `json:"id"`
	}
	decode(t, rec, &product)
	rec = app.do(t, http.MethodPost, "/", map[string]interface{}{"productId": product.ID, "quantity": 100, "date": "2021-05-28T12:00:00Z"}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodDelete, "/products/"+product.ID, nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pomidor")
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/products/"+product.ID, nil, admin.AccessToken).Code)

	rec = app.do(t, http.MethodGet, "/2021-05-28", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayBody
	decode(t, rec, &day)
	assert.Empty(t, day.UserProducts)
	assert.Equal(t, 0.0, day.Summary.Kcal)
}
