package controller

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"chat-service/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfileOverlaysLivePresence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&model.User{
		Username: "alice", Email: "alice@example.com", Password: "x",
	}).Error)

	// The durable mirror says offline, but a session is live and the
	// presence store remembers a fresher last-seen.
	seen := time.Now().Add(-2 * time.Minute)
	f.presence.sockets[1] = []string{"socket-1"}
	f.presence.lastSeen[1] = seen

	resp := f.request(t, "GET", "/user/profile", "1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := struct {
		Data struct {
			Online   bool       `json:"online"`
			LastSeen *time.Time `json:"last_seen"`
		} `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, body.Data.Online)
	require.NotNil(t, body.Data.LastSeen)
	assert.WithinDuration(t, seen, *body.Data.LastSeen, time.Second)
}

func TestUserProfileFallsBackToDurableMirror(t *testing.T) {
	f := newFixture(t)
	mirror := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Create(&model.User{
		Username: "alice", Email: "alice@example.com", Password: "x",
		LastSeen: &mirror,
	}).Error)

	resp := f.request(t, "GET", "/user/profile", "1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := struct {
		Data struct {
			Online   bool       `json:"online"`
			LastSeen *time.Time `json:"last_seen"`
		} `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.False(t, body.Data.Online)
	require.NotNil(t, body.Data.LastSeen)
	assert.WithinDuration(t, mirror, *body.Data.LastSeen, time.Second)
}
