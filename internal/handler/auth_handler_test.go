package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type authServiceMock struct {
	last models.LoginRequest
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.last = req
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token"}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)
	body, _ := json.Marshal(map[string]string{"email": "a@example.com", "password": "secret"})
	c, w := newTestContext(http.MethodPost, "/auth/login", body, nil)

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handler-test", svc.last.UserAgent)
	assert.Equal(t, "req-handler", svc.last.RequestID)
	assert.Contains(t, w.Body.String(), `"accessToken":"token"`)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})
	body, _ := json.Marshal(map[string]string{"email": "a@example.com", "password": "nope"})
	c, w := newTestContext(http.MethodPost, "/auth/login", body, nil)

	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
