package vaultd

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
)

type plainEvent string

func (e plainEvent) EventType() string { return string(e) }

type canonicalEvent struct{ evt *types.Event }

func (e canonicalEvent) EventType() string   { return e.evt.Type }
func (e canonicalEvent) Event() *types.Event { return e.evt }

func TestHubBroadcastsAndDropsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	fast, cancelFast := hub.Subscribe()
	defer cancelFast()
	_, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	require.Equal(t, 2, hub.Subscribers())

	hub.Emit(canonicalEvent{&types.Event{Type: "payout.executed", Attributes: map[string]string{"amount": "5"}}})
	got := <-fast
	require.Equal(t, "payout.executed", got.Type)
	require.Equal(t, "5", got.Attributes["amount"])

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Emit(plainEvent("tick"))
		for len(fast) > 0 {
			<-fast
		}
	}
	require.Equal(t, 1, hub.Subscribers())

	hub.Close()
	_, open := <-fast
	require.False(t, open)
	late, _ := hub.Subscribe()
	_, open = <-late
	require.False(t, open)
}

func TestEventsWebsocketFiltersByPrefix(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	token, err := IssueToken([]byte(testSecret), "", "", addr(0x01), time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws?type=escrow."
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	f.openTournament(t)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt StreamEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "escrow.created", evt.Type)

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "escrow.deposited", evt.Type)
}
