package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender_RequiresKeyAndFrom(t *testing.T) {
	_, err := NewSendGridSender("", "from@test.io", "App")
	assert.Error(t, err)

	_, err = NewSendGridSender("key", "", "App")
	assert.Error(t, err)
}

func TestSendGridSender_Send(t *testing.T) {
	var got struct {
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Subject          string `json:"subject"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSendGridSender("sg-key", "noreply@test.io", "Task Manager")
	require.NoError(t, err)
	s.endpoint = srv.URL

	err = s.Send(context.Background(), WelcomeMessage("jose", "j@test.io"))
	require.NoError(t, err)

	assert.Equal(t, "noreply@test.io", got.From.Email)
	assert.Equal(t, "Thanks for joining in!", got.Subject)
	require.Len(t, got.Personalizations, 1)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "j@test.io", got.Personalizations[0].To[0].Email)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s, err := NewSendGridSender("wrong", "noreply@test.io", "")
	require.NoError(t, err)
	s.endpoint = srv.URL

	assert.Error(t, s.Send(context.Background(), WelcomeMessage("jose", "j@test.io")))
}
