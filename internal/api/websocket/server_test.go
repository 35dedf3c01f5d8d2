package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPredictionBroadcast(t *testing.T) {
	srv := NewServer(nil, nil)
	ts := httptest.NewServer(srv.Handler())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/predictions"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	pred := store.Prediction{Event: store.Event{ID: "bosnyk2024-03-02", Team1: "bos", Team2: "nyk"}}
	require.NoError(t, srv.PublishPrediction(context.Background(), sport.NBA, pred))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string `json:"type"`
		Sport   string `json:"sport"`
		Payload struct {
			Event struct {
				ID string `json:"id"`
			} `json:"event"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "prediction", msg.Type)
	assert.Equal(t, "nba", msg.Sport)
	assert.Equal(t, "bosnyk2024-03-02", msg.Payload.Event.ID)
	assert.Equal(t, int64(1), srv.hub.Messages())

	conn.Close()
	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	ts.Close()
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestHealth(t *testing.T) {
	srv := NewServer(nil, nil)
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","clients":0,"messages":0}`, rec.Body.String())
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://augur.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws/predictions", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://augur.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
