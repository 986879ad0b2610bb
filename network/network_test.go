package network

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/config"
	"nexus/errs"
	"nexus/game"
	"nexus/hub"
	"nexus/presence"
	"nexus/protocol"
	"nexus/room"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.NetworkConfig {
	return config.NetworkConfig{
		ReadLimitBytes:  1 << 16,
		PongWait:        10 * time.Second,
		PingPeriod:      5 * time.Second,
		WriteWait:       time.Second,
		SendQueue:       64,
		FramesPerSecond: 1000,
		FrameBurst:      1000,
		MaxDecodeErrors: 5,
	}
}

func newTestServer(t *testing.T, cfg config.NetworkConfig) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(presence.NewRegistry(), room.NewManager(), game.NewStore())
	srv := httptest.NewServer(NewRouter(h, cfg, nil))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	b, err := protocol.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(msg)
	require.NoError(t, err)
	return env
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) protocol.Envelope {
	t.Helper()
	for {
		env := read(t, conn)
		if env.T == typ {
			return env
		}
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if v != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}
	return res.StatusCode
}

func TestRegisterOverWebsocket(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	conn := dial(t, srv)

	send(t, conn, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "P1", Username: "ada"})
	assert.Equal(t, protocol.MsgSessionsList, read(t, conn).T)

	env := read(t, conn)
	require.Equal(t, protocol.MsgUserOnline, env.T)
	p, err := protocol.DecodePayload[protocol.Presence](env)
	require.NoError(t, err)
	assert.Equal(t, "P1", p.UserID)
	assert.Equal(t, "ada", p.Username)
}

func TestSessionQueries(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	conn := dial(t, srv)

	send(t, conn, protocol.MsgCreateSession, protocol.CreateSession{
		HostID:      "P1",
		HostName:    "ada",
		Privacy:     room.Public,
		Territories: []game.Territory{{ID: "T1", Name: "Ridge"}},
	})
	env := readUntil(t, conn, protocol.MsgSessionCreated)
	created, err := protocol.DecodePayload[room.Session](env)
	require.NoError(t, err)

	var public []room.PublicSessionSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions/public", &public))
	require.Len(t, public, 1)
	assert.Equal(t, created.Code, public[0].Code)

	var all []room.Session
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions", &all))
	assert.Len(t, all, 1)

	var s room.Session
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions/"+created.ID, &s))
	assert.Equal(t, "P1", s.HostID)

	var st game.State
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions/"+created.ID+"/state", &st))
	require.Len(t, st.Territories, 1)
	assert.Equal(t, "T1", st.Territories[0].ID)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/sessions/missing/state", nil))
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	dial(t, srv)

	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Sessions    int    `json:"sessions"`
		UsersOnline int    `json:"usersOnline"`
	}
	// The hub learns about the connection just after the handshake completes.
	require.Eventually(t, func() bool {
		return getJSON(t, srv.URL+"/healthz", &body) == http.StatusOK && body.Connections == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "ok", body.Status)
	assert.Zero(t, body.Sessions)
	assert.Zero(t, body.UsersOnline)
}

func TestOnlineUsersQuery(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	conn := dial(t, srv)
	send(t, conn, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "P1", Username: "ada"})
	readUntil(t, conn, protocol.MsgUserOnline)

	var users []presence.User
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/users/online", &users))
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Username)

	var body struct {
		UsersOnline int `json:"usersOnline"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, 1, body.UsersOnline)
}

func TestMalformedFrameGetsError(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))
	env := read(t, conn)
	require.Equal(t, protocol.MsgError, env.T)
	e, err := protocol.DecodePayload[protocol.Error](env)
	require.NoError(t, err)
	assert.Equal(t, "validation_failure", e.Code)

	// The connection survives a single bad frame.
	send(t, conn, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "P1"})
	assert.Equal(t, protocol.MsgSessionsList, read(t, conn).T)
}

func TestRepeatedDecodeErrorsClose(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDecodeErrors = 2
	srv, _ := newTestServer(t, cfg)
	conn := dial(t, srv)

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
		assert.Equal(t, protocol.MsgError, read(t, conn).T)
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.FramesPerSecond = 0.001
	cfg.FrameBurst = 1
	srv, _ := newTestServer(t, cfg)
	conn := dial(t, srv)

	send(t, conn, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "P1"})
	readUntil(t, conn, protocol.MsgUserOnline)

	send(t, conn, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "P1"})
	env := read(t, conn)
	require.Equal(t, protocol.MsgError, env.T)
	e, err := protocol.DecodePayload[protocol.Error](env)
	require.NoError(t, err)
	assert.Equal(t, "rate limit exceeded", e.Message)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "A"})
	readUntil(t, a, protocol.MsgUserOnline)
	send(t, b, protocol.MsgRegisterUser, protocol.RegisterUser{ID: "B"})
	readUntil(t, b, protocol.MsgUserOnline)

	require.NoError(t, a.Close())

	env := readUntil(t, b, protocol.MsgUserOffline)
	p, err := protocol.DecodePayload[protocol.Presence](env)
	require.NoError(t, err)
	assert.Equal(t, "A", p.UserID)
}

func TestCheckOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://nexus.example"}
	srv, _ := newTestServer(t, cfg)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://nexus.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestClientSendDoesNotBlock(t *testing.T) {
	cfg := testConfig()
	cfg.SendQueue = 1
	c := newClient(nil, cfg)

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendQueueFull)
}

func TestServerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(ln.Addr().String(), http.NotFoundHandler(), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAbortMapsErrorKinds(t *testing.T) {
	cases := map[error]int{
		errs.NotFound("session %q not found", "s1"): http.StatusNotFound,
		errs.Validation("bad id"):                   http.StatusBadRequest,
		errs.Unregistered("register first"):         http.StatusForbidden,
		errs.Internal(errors.New("boom")):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		abort(c, err)
		assert.Equal(t, want, w.Code, err.Error())
	}
}
