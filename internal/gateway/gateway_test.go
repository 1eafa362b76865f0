package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JFJun/kernel/internal/api"
	"github.com/JFJun/kernel/internal/bus"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/peers"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	bus   *bus.Bus
	peers *peers.Registry
	srv   *Server
	http  *httptest.Server
	url   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bus.New()
	reg := peers.NewRegistry()
	m := metrics.New()
	svc := api.NewService(api.Deps{Peers: reg, Logger: zap.NewNop()})
	srv := New("127.0.0.1:0", b, api.NewRouter(svc, m, zap.NewNop()), m, zap.NewNop())
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &fixture{bus: b, peers: reg, srv: srv, http: hs, url: "ws" + strings.TrimPrefix(hs.URL, "http") + "/renderer"}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socialsync_")
}

func TestRendererReceivesPayloads(t *testing.T) {
	f := newFixture(t)
	gw, unsub := f.bus.Subscribe("gateway.", 4)
	defer unsub()
	bridge := renderer.NewBridge(f.bus)

	conn := f.dial(t)
	select {
	case evt := <-gw:
		assert.Equal(t, bus.GatewayConnected, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("gateway.connected not published")
	}

	bridge.Send(renderer.UpdateTotalFriends{TotalFriends: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type    string                      `json:"type"`
		Payload renderer.UpdateTotalFriends `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "UpdateTotalFriends", frame.Type)
	assert.Equal(t, 3, frame.Payload.TotalFriends)
}

func TestRendererRequestsAreRouted(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "SetPeerOnline",
		"payload": map[string]any{"userId": "0xb1", "online": true},
	}))
	assert.Eventually(t, func() bool { return f.peers.IsOnline("0xb1") }, 2*time.Second, 10*time.Millisecond)
}

func TestSecondRendererIsRejected(t *testing.T) {
	f := newFixture(t)
	gw, unsub := f.bus.Subscribe(bus.GatewayConnected, 1)
	defer unsub()
	first := f.dial(t)
	<-gw

	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	disconnected, unsub2 := f.bus.Subscribe(bus.GatewayDisconnected, 1)
	defer unsub2()
	require.NoError(t, first.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("gateway.disconnected not published")
	}

	again := f.dial(t)
	assert.NotNil(t, again)
}
