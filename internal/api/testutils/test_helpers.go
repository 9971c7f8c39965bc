package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nexml/marketplace-server/internal/api"
	"github.com/nexml/marketplace-server/internal/models"
	"github.com/nexml/marketplace-server/internal/payment"
	"github.com/nexml/marketplace-server/internal/repository"
	"github.com/nexml/marketplace-server/internal/service"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	Settler     *payment.MemorySettler
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a new test context over the in-memory
// repository, so the suites run without a database.
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()
	settler := payment.NewMemorySettler()
	svc := service.NewMarketplaceService(repo, settler, testJWTSecret)
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Settler:    settler,
		JWTSecret:  []byte(testJWTSecret),
	}

	testCtx.TestUserID, testCtx.TestUserJWT = testCtx.CreateTestUser(t, "testuser@example.com", "Test User")

	return testCtx
}

// CreateTestUser registers an account directly through the repository and
// returns its identity plus a signed token for it. Marketplace suites use
// it to act as buyers, renters and raters.
func (tc *TestContext) CreateTestUser(t *testing.T, email, name string) (string, string) {
	t.Helper()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
	}

	err := tc.Repository.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	// Generate JWT token with the test secret
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString(tc.JWTSecret)
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// UploadTestModel creates a listing through the HTTP API and returns its id
func (tc *TestContext) UploadTestModel(t *testing.T, token string, req models.UploadModelRequest) string {
	t.Helper()

	w := PerformRequest(tc.Router, http.MethodPost, "/api/models", req, AuthHeaders(token))
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.UploadModelResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.ModelID)

	return resp.ModelID
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
