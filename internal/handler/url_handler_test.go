package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/crabcut/shortener/internal/errors"
	"github.com/crabcut/shortener/internal/model"
	"github.com/crabcut/shortener/internal/utils"
)

type mockURLService struct {
	urls       map[string]string // short code -> long URL
	resolved   []model.ClickMetadata
	serviceErr error
}

func newMockURLService() *mockURLService {
	return &mockURLService{
		urls: make(map[string]string),
	}
}

func (m *mockURLService) CreateShortURL(ctx context.Context, req *model.CreateURLRequest) (*model.CreateURLResponse, error) {
	if m.serviceErr != nil {
		return nil, m.serviceErr
	}

	longURL := strings.TrimSpace(req.LongURL)
	if longURL == "" {
		return nil, apperrors.NewValidationError("long_url", "URL cannot be empty")
	}

	shortCode := req.CustomAlias
	if shortCode == "" {
		shortCode = utils.DeriveShortCode(longURL)
	} else {
		if !utils.ValidateAlias(shortCode) {
			return nil, apperrors.NewValidationError("custom_alias", "invalid alias")
		}
		if _, exists := m.urls[shortCode]; exists {
			return nil, apperrors.ErrAliasExists
		}
	}

	m.urls[shortCode] = longURL
	return &model.CreateURLResponse{
		ShortURL: "http://localhost:8080/" + shortCode,
	}, nil
}

func (m *mockURLService) ResolveURL(ctx context.Context, shortCode string, meta model.ClickMetadata) (string, error) {
	if m.serviceErr != nil {
		return "", m.serviceErr
	}

	longURL, exists := m.urls[shortCode]
	if !exists {
		return "", apperrors.ErrURLNotFound
	}

	m.resolved = append(m.resolved, meta)
	return longURL, nil
}

func setupRouter(svc URLService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewURLHandler(svc)
	router := gin.New()
	router.POST("/create", h.CreateURL)
	router.GET("/:shortCode", h.RedirectURL)
	return router
}

func TestURLHandler_CreateURL(t *testing.T) {
	tests := []struct {
		name            string
		requestBody     interface{}
		serviceErr      error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:           "valid request",
			requestBody:    map[string]string{"long_url": "https://example.com"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid request with alias",
			requestBody:    map[string]string{"long_url": "https://example.com", "custom_alias": "abc123"},
			expectedStatus: http.StatusOK,
		},
		{
			name:            "invalid JSON",
			requestBody:     "invalid json",
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid input",
		},
		{
			name:            "missing long_url",
			requestBody:     map[string]string{"custom_alias": "abc123"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid input",
		},
		{
			name:            "invalid alias",
			requestBody:     map[string]string{"long_url": "https://example.com", "custom_alias": "bad-alias!"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid alias",
		},
		{
			name:            "alias conflict",
			requestBody:     map[string]string{"long_url": "https://example.com", "custom_alias": "taken1"},
			serviceErr:      apperrors.ErrAliasExists,
			expectedStatus:  http.StatusConflict,
			expectedMessage: "Alias already exists",
		},
		{
			name:           "storage failure",
			requestBody:    map[string]string{"long_url": "https://example.com"},
			serviceErr:     apperrors.NewBusinessError("DATABASE_ERROR", "failed to create URL", errors.New("connection reset")),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := newMockURLService()
			mockService.serviceErr = tt.serviceErr
			router := setupRouter(mockService)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatalf("Failed to marshal request body: %v", err)
				}
			}

			req := httptest.NewRequest("POST", "/create", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("CreateURL() status = %d, want %d", w.Code, tt.expectedStatus)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}

			if tt.expectedStatus == http.StatusOK {
				if _, exists := response["short_url"]; !exists {
					t.Error("CreateURL() response missing short_url")
				}
			} else if tt.expectedMessage != "" {
				if response["message"] != tt.expectedMessage {
					t.Errorf("CreateURL() message = %v, want %s", response["message"], tt.expectedMessage)
				}
			}
		})
	}
}

func TestURLHandler_CreateURL_DerivedCodeShape(t *testing.T) {
	mockService := newMockURLService()
	router := setupRouter(mockService)

	body, _ := json.Marshal(map[string]string{
		"long_url":     "https://example.com/a",
		"custom_alias": "",
	})

	req := httptest.NewRequest("POST", "/create", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("CreateURL() status = %d, want %d", w.Code, http.StatusOK)
	}

	var response model.CreateURLResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	parts := strings.Split(response.ShortURL, "/")
	code := parts[len(parts)-1]
	if len(code) != utils.DerivedCodeLength {
		t.Errorf("derived code %q length = %d, want %d", code, len(code), utils.DerivedCodeLength)
	}

	// The generated code must resolve back to the submitted URL.
	redirectReq := httptest.NewRequest("GET", "/"+code, nil)
	redirectW := httptest.NewRecorder()
	router.ServeHTTP(redirectW, redirectReq)

	if redirectW.Code != http.StatusFound {
		t.Fatalf("RedirectURL() status = %d, want %d", redirectW.Code, http.StatusFound)
	}

	if location := redirectW.Header().Get("Location"); location != "https://example.com/a" {
		t.Errorf("RedirectURL() Location = %s, want https://example.com/a", location)
	}
}

func TestURLHandler_RedirectURL(t *testing.T) {
	mockService := newMockURLService()
	mockService.urls["abc123"] = "https://example.com"
	router := setupRouter(mockService)

	t.Run("successful redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/abc123", nil)
		req.Header.Set("User-Agent", "curl/8.5")
		req.Header.Set("Referer", "https://news.example.org")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Errorf("RedirectURL() status = %d, want %d", w.Code, http.StatusFound)
		}

		location := w.Header().Get("Location")
		if location != "https://example.com" {
			t.Errorf("RedirectURL() Location = %s, want https://example.com", location)
		}

		if len(mockService.resolved) != 1 {
			t.Fatalf("RedirectURL() resolved %d times, want 1", len(mockService.resolved))
		}

		meta := mockService.resolved[0]
		if meta.UserAgent != "curl/8.5" {
			t.Errorf("RedirectURL() UserAgent = %s, want curl/8.5", meta.UserAgent)
		}
		if meta.Referrer != "https://news.example.org" {
			t.Errorf("RedirectURL() Referrer = %s, want https://news.example.org", meta.Referrer)
		}
	})

	t.Run("unknown short code", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/notfound", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("RedirectURL() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		failing := newMockURLService()
		failing.serviceErr = apperrors.NewBusinessError("DATABASE_ERROR", "failed to look up URL", errors.New("connection reset"))
		failingRouter := setupRouter(failing)

		req := httptest.NewRequest("GET", "/abc123", nil)
		w := httptest.NewRecorder()

		failingRouter.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("RedirectURL() status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
