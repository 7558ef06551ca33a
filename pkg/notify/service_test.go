package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulhq/konsul/pkg/models"
)

func TestNewServiceRequiresWebhook(t *testing.T) {
	assert.Nil(t, NewService(ServiceConfig{}))
	assert.NotNil(t, NewService(ServiceConfig{WebhookURL: "https://hooks.example/x"}))
}

func TestNilServiceIsSafe(t *testing.T) {
	var s *Service
	s.SessionFinalized(&models.Session{SessionID: "a1b2c3d4"})
	s.SessionConfirmed(nil)
}

func TestSessionConfirmedDelivery(t *testing.T) {
	var got event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewService(ServiceConfig{
		WebhookURL:   srv.URL,
		AuthToken:    "secret",
		DashboardURL: "https://app.example",
	})
	s.SessionConfirmed(&models.Session{
		SessionID:   "a1b2c3d4",
		Status:      models.StatusConfirmed,
		CompanyName: "Ромашка",
		AnketaData:  &models.Anketa{CompanyName: "Ромашка"},
	})

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "session.confirmed", got.Event)
	assert.Equal(t, "a1b2c3d4", got.SessionID)
	assert.Equal(t, "Ромашка", got.CompanyName)
	assert.Equal(t, "https://app.example/sessions/a1b2c3d4", got.DashboardURL)
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewService(ServiceConfig{WebhookURL: srv.URL})
	s.SessionFinalized(&models.Session{SessionID: "a1b2c3d4"}) // must not panic
}
