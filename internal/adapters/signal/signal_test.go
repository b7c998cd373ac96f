package signal

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nstepura/Ring/internal/auth"
	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
)

func newTestServer(t *testing.T) (*core.Registry, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := core.NewRegistry(time.Minute)
	ctl := NewController(reg, auth.NewVerifier("42:TOKEN"), 32768, 50*time.Second)

	r := gin.New()
	r.GET("/ws/tg/:room_id/:init_data", ctl.HandleAuthenticated)
	r.GET("/ws/private/:room_id", ctl.HandlePrivate)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitFor reads frames until one of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) core.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", msgType)
		var env core.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == msgType {
			return env
		}
	}
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		require.True(t, websocket.IsCloseError(err, code), "expected close %d, got %v", code, err)
		return
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
}

func identityOf(t *testing.T, conn *websocket.Conn) domain.UserID {
	t.Helper()
	env := waitFor(t, conn, core.TypeIdentity)
	var p struct {
		ID domain.UserID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p.ID
}

func userList(t *testing.T, env core.Envelope) []core.ParticipantDTO {
	t.Helper()
	var list []core.ParticipantDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func Test_Private_Room_Admission_And_Capacity(t *testing.T) {
	req := require.New(t)
	reg, srv := newTestServer(t)
	reg.GetOrCreate("priv-1", domain.VisibilityPrivate)

	c1 := dial(t, srv, "/ws/private/priv-1")
	identityOf(t, c1)
	req.Len(userList(t, waitFor(t, c1, core.TypeUserList)), 1)

	c2 := dial(t, srv, "/ws/private/priv-1")
	identityOf(t, c2)
	req.Len(userList(t, waitFor(t, c2, core.TypeUserList)), 2)

	c3 := dial(t, srv, "/ws/private/priv-1")
	expectClose(t, c3, core.ClosePolicyViolation)

	// The rejected connection never made it into the list.
	room, ok := reg.Get("priv-1")
	req.True(ok)
	req.Equal(2, room.ParticipantCount())
}

func Test_Unknown_Private_Room_Is_Rejected(t *testing.T) {
	_, srv := newTestServer(t)
	c := dial(t, srv, "/ws/private/no-such-room")
	expectClose(t, c, core.ClosePolicyViolation)
}

func Test_Public_Room_Id_Is_Not_A_Private_Door(t *testing.T) {
	reg, srv := newTestServer(t)
	reg.GetOrCreate("chat-1", domain.VisibilityPublic)
	c := dial(t, srv, "/ws/private/chat-1")
	expectClose(t, c, core.ClosePolicyViolation)
}

func Test_Invalid_Init_Data_Is_Rejected(t *testing.T) {
	req := require.New(t)
	reg, srv := newTestServer(t)

	c := dial(t, srv, "/ws/tg/chat-1/not-signed-at-all")
	expectClose(t, c, core.ClosePolicyViolation)

	// Rejection happens before any room state is created.
	if room, ok := reg.Get("chat-1"); ok {
		req.Zero(room.ParticipantCount())
	}
}

func Test_Call_Signaling_Between_Peers(t *testing.T) {
	req := require.New(t)
	reg, srv := newTestServer(t)
	reg.GetOrCreate("priv-1", domain.VisibilityPrivate)

	a := dial(t, srv, "/ws/private/priv-1")
	idA := identityOf(t, a)
	b := dial(t, srv, "/ws/private/priv-1")
	idB := identityOf(t, b)

	send(t, a, core.TypeCallUser, map[string]any{"target_id": idB, "call_type": "audio"})
	env := waitFor(t, b, core.TypeIncomingCall)
	var incoming struct {
		From     domain.UserID `json:"from"`
		CallType string        `json:"call_type"`
	}
	req.NoError(json.Unmarshal(env.Data, &incoming))
	req.Equal(idA, incoming.From)
	req.Equal("audio", incoming.CallType)

	send(t, b, core.TypeCallAccepted, map[string]any{"target_id": idA})
	env = waitFor(t, a, core.TypeCallAccepted)
	var accepted struct {
		From domain.UserID `json:"from"`
	}
	req.NoError(json.Unmarshal(env.Data, &accepted))
	req.Equal(idB, accepted.From)

	send(t, a, core.TypeOffer, map[string]any{"target_id": idB, "sdp": "v=0 offer"})
	env = waitFor(t, b, core.TypeOffer)
	var offer struct {
		From     domain.UserID `json:"from"`
		TargetID domain.UserID `json:"target_id"`
		SDP      string        `json:"sdp"`
	}
	req.NoError(json.Unmarshal(env.Data, &offer))
	req.Equal(idA, offer.From)
	req.Empty(offer.TargetID)
	req.Equal("v=0 offer", offer.SDP)

	send(t, b, core.TypeCandidate, map[string]any{
		"target_id": idA, "candidate": "candidate:1 1 udp", "sdpMid": "0", "sdpMLineIndex": 0,
	})
	env = waitFor(t, a, core.TypeCandidate)
	var cand struct {
		From      domain.UserID `json:"from"`
		Candidate string        `json:"candidate"`
		SDPMid    *string       `json:"sdpMid"`
	}
	req.NoError(json.Unmarshal(env.Data, &cand))
	req.Equal(idB, cand.From)
	req.Equal("candidate:1 1 udp", cand.Candidate)
	req.NotNil(cand.SDPMid)

	send(t, a, core.TypeHangup, map[string]any{"target_id": idB})
	waitFor(t, b, core.TypeCallEnded)
}

func Test_Disconnect_Resolves_Ringing_Call(t *testing.T) {
	req := require.New(t)
	reg, srv := newTestServer(t)
	reg.GetOrCreate("priv-1", domain.VisibilityPrivate)

	a := dial(t, srv, "/ws/private/priv-1")
	identityOf(t, a)
	b := dial(t, srv, "/ws/private/priv-1")
	idB := identityOf(t, b)

	send(t, a, core.TypeCallUser, map[string]any{"target_id": idB, "call_type": "video"})
	waitFor(t, b, core.TypeIncomingCall)

	req.NoError(a.Close())

	waitFor(t, b, core.TypeCallEnded)
	list := userList(t, waitFor(t, b, core.TypeUserList))
	req.Len(list, 1)
	req.Equal(idB, list[0].ID)
	req.Equal(domain.StatusAvailable, list[0].Status)
}

func Test_Expired_Room_Rejects_New_Connections(t *testing.T) {
	reg, srv := newTestServer(t)
	reg.GetOrCreate("priv-1", domain.VisibilityPrivate)

	c := dial(t, srv, "/ws/private/priv-1")
	identityOf(t, c)

	reg.ScheduleExpiry("priv-1", 20*time.Millisecond)
	waitFor(t, c, core.TypeRoomExpired)
	expectClose(t, c, core.CloseNormal)

	late := dial(t, srv, "/ws/private/priv-1")
	expectClose(t, late, core.ClosePolicyViolation)
}

func Test_Dispatch_Skips_Bad_Input(t *testing.T) {
	ctl := NewController(core.NewRegistry(time.Minute), auth.NewVerifier("42:TOKEN"), 32768, 50*time.Second)
	room := core.NewRoom(domain.NewPublicRoom("r"), time.Minute)
	conn := &wsConn{send: make(chan core.Frame, 4)}

	ctl.dispatch(room, "x", conn, []byte("{not json"))
	ctl.dispatch(room, "x", conn, []byte(`{"type":"subscribe","data":{}}`))
	ctl.dispatch(room, "x", conn, []byte(`{"type":"call_user","data":"not an object"}`))
}
