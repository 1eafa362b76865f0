package api

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/JFJun/kernel/internal/channels"
	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/chat/memory"
	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/dispatch"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/peers"
	"github.com/JFJun/kernel/internal/presence"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/store"
	"github.com/JFJun/kernel/internal/unread"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const domain = "decentraland.org"

var names = map[string]string{"0xa1": "john", "0xb1": "mike", "0xc1": "agus", "0xd1": "boris"}

type fixture struct {
	srv     *memory.Server
	session chat.Session
	store   *friends.Store
	rec     *renderer.Recorder
	metrics *metrics.Metrics
	svc     *Service
	router  *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	srv := memory.NewServer(domain)
	session, err := srv.Login(ctx, chat.LoginRequest{
		Address:   "0xf0",
		AuthChain: []chat.AuthLink{{Type: "SIGNER", Payload: "0xf0"}},
	})
	require.NoError(t, err)
	for _, u := range []string{"0xa1", "0xb1", "0xc1", "0xd1"} {
		srv.Register(srv.SocialID(u), names[u])
		srv.MakeFriends(session.UserID(), srv.SocialID(u))
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "social.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.NewSource(config.Default(), "")
	mapper := identity.NewMapper(domain, zap.NewNop())
	rec := renderer.NewRecorder()
	m := metrics.New()
	st := friends.NewStore()
	st.SetSession(session)

	fetch := func(_ context.Context, userID string) (profiles.Avatar, error) {
		return profiles.DefaultProfile(userID, names[userID], cfg.ServerURL()), nil
	}
	catalog, err := profiles.NewCatalog(64, fetch, rec)
	require.NoError(t, err)
	mutes, err := channels.LoadMutes(db)
	require.NoError(t, err)
	blocked, err := dispatch.LoadBlocklist(db)
	require.NoError(t, err)
	reg := peers.NewRegistry()
	acc := unread.New(st, mapper, mutes, cfg)
	tracker := presence.NewTracker(st, mapper, rec, reg, zap.NewNop())
	ctrl := friends.NewController(st, mapper, rec, catalog, tracker, acc, db, m, zap.NewNop())
	ctrl.SetSettleDelay(0)
	require.NoError(t, ctrl.Refresh(ctx))
	rec.Reset()

	svc := NewService(Deps{
		Store:    st,
		Mapper:   mapper,
		Renderer: rec,
		Catalog:  catalog,
		Tracker:  tracker,
		Friends:  ctrl,
		Channels: channels.NewManager(st, mapper, rec, cfg, mutes, acc, catalog, m, zap.NewNop()),
		Unread:   acc,
		Room:     presence.NewRoomContext(config.OfflineRealm, nil),
		Peers:    reg,
		Blocked:  blocked,
		Logger:   zap.NewNop(),
	})
	return &fixture{srv: srv, session: session, store: st, rec: rec, metrics: m, svc: svc, router: NewRouter(svc, m, zap.NewNop())}
}

func TestGetFriendsFiltersButReportsFullTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.GetFriends(ctx, GetFriendsRequest{Limit: 10, UserNameOrID: "0xa"}))
	got, ok := renderer.Last[renderer.AddFriends](f.rec)
	require.True(t, ok)
	assert.Equal(t, []string{"0xa1"}, got.Friends)
	assert.Equal(t, 4, got.TotalFriends)

	f.rec.Reset()
	require.NoError(t, f.svc.GetFriends(ctx, GetFriendsRequest{Limit: 10, UserNameOrID: "MiKe"}))
	got, ok = renderer.Last[renderer.AddFriends](f.rec)
	require.True(t, ok)
	assert.Equal(t, []string{"0xb1"}, got.Friends)

	profs, ok := renderer.Last[renderer.AddUserProfilesToCatalog](f.rec)
	require.True(t, ok)
	require.Len(t, profs.Profiles, 1)
	assert.Equal(t, "mike", profs.Profiles[0].Name)
}

func TestGetFriendsKeepsFriendsWithoutProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.catalog.Reset()

	require.NoError(t, f.svc.GetFriends(ctx, GetFriendsRequest{Limit: 10}))
	got, ok := renderer.Last[renderer.AddFriends](f.rec)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"0xa1", "0xb1", "0xc1", "0xd1"}, got.Friends)
	assert.Equal(t, 4, got.TotalFriends)
	assert.Empty(t, renderer.Sent[renderer.AddUserProfilesToCatalog](f.rec))

	require.NoError(t, f.svc.GetFriends(ctx, GetFriendsRequest{Limit: 10, UserNameOrID: "0xc"}))
	got, _ = renderer.Last[renderer.AddFriends](f.rec)
	assert.Equal(t, []string{"0xc1"}, got.Friends)
}

func TestGetFriendsPages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.GetFriends(context.Background(), GetFriendsRequest{Skip: 1, Limit: 2}))
	got, ok := renderer.Last[renderer.AddFriends](f.rec)
	require.True(t, ok)
	assert.Len(t, got.Friends, 2)
	assert.Equal(t, 4, got.TotalFriends)
}

func TestGetFriendRequestsTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, u := range []string{"0x11", "0x22"} {
		f.srv.Register(f.srv.SocialID(u), u)
	}
	f.srv.AddRequest(f.srv.SocialID("0x11"), f.session.UserID())
	f.srv.AddRequest(f.session.UserID(), f.srv.SocialID("0x22"))
	require.NoError(t, f.svc.friends.Refresh(ctx))
	f.rec.Reset()

	require.NoError(t, f.svc.GetFriendRequests(ctx, GetFriendRequestsRequest{SentLimit: 10, ReceivedLimit: 10}))
	got, ok := renderer.Last[renderer.AddFriendRequests](f.rec)
	require.True(t, ok)
	assert.Equal(t, []string{"0x11"}, got.RequestedFrom)
	assert.Equal(t, []string{"0x22"}, got.RequestedTo)
	assert.Equal(t, 1, got.TotalReceivedFriendRequests)
	assert.Equal(t, 1, got.TotalSentFriendRequests)
}

func TestPrivateMessagesRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.srv.SocialID("0xb1")
	conv, err := f.session.CreateDirectConversation(ctx, bob)
	require.NoError(t, err)
	_, err = f.srv.Post(conv.ID, bob, "hi")
	require.NoError(t, err)

	require.NoError(t, f.svc.SendPrivateMessage(ctx, SendPrivateMessageRequest{UserID: "0xb1", Body: "hello"}))
	echo, ok := renderer.Last[renderer.AddMessageToChatWindow](f.rec)
	require.True(t, ok)
	assert.Equal(t, "0xf0", echo.Sender)
	assert.Equal(t, "0xb1", echo.Recipient)
	assert.Equal(t, renderer.MessagePrivate, echo.MessageType)

	require.NoError(t, f.svc.GetPrivateMessages(ctx, GetPrivateMessagesRequest{UserID: "0xb1", Limit: 10}))
	got, ok := renderer.Last[renderer.AddChatMessages](f.rec)
	require.True(t, ok)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "0xb1", got.Messages[0].Sender)
	assert.Equal(t, "0xf0", got.Messages[0].Recipient)
	assert.Equal(t, "0xf0", got.Messages[1].Sender)

	require.NoError(t, f.svc.GetPrivateMessages(ctx, GetPrivateMessagesRequest{UserID: "0xb1", FromMessageID: got.Messages[1].MessageID, Limit: 10}))
	before, ok := renderer.Last[renderer.AddChatMessages](f.rec)
	require.True(t, ok)
	require.Len(t, before.Messages, 1)
	assert.Equal(t, "hi", before.Messages[0].Body)
}

func TestMarkPrivateSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.srv.SocialID("0xb1")
	conv, err := f.session.CreateDirectConversation(ctx, bob)
	require.NoError(t, err)
	_, err = f.srv.Post(conv.ID, bob, "unread")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkPrivateSeen(ctx, UserRequest{UserID: "0xb1"}))
	assert.Empty(t, f.session.GetConversationUnreadMessages(conv.ID))
	user, ok := renderer.Last[renderer.UpdateUserUnseenMessages](f.rec)
	require.True(t, ok)
	assert.Equal(t, renderer.UpdateUserUnseenMessages{UserID: "0xb1", Total: 0}, user)
	total, ok := renderer.Last[renderer.UpdateTotalUnseenMessages](f.rec)
	require.True(t, ok)
	assert.Equal(t, 0, total.Total)
}

func TestFriendsWithDirectMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.GetFriendsWithDirectMessages(ctx, GetFriendsWithDirectMessagesRequest{Limit: 10}))
	_, ok := renderer.Last[renderer.AddFriendsWithDirectMessages](f.rec)
	assert.False(t, ok, "nothing is sent without conversations")

	for _, u := range []string{"0xb1", "0xc1"} {
		conv, err := f.session.CreateDirectConversation(ctx, f.srv.SocialID(u))
		require.NoError(t, err)
		_, err = f.srv.Post(conv.ID, f.srv.SocialID(u), "hey")
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.GetFriendsWithDirectMessages(ctx, GetFriendsWithDirectMessagesRequest{Limit: 10, UserNameOrID: "agus"}))
	got, ok := renderer.Last[renderer.AddFriendsWithDirectMessages](f.rec)
	require.True(t, ok)
	assert.Equal(t, 2, got.TotalFriendsWithDirectMessages)
	require.Len(t, got.CurrentFriendsWithDirectMessages, 1)
	assert.Equal(t, "0xc1", got.CurrentFriendsWithDirectMessages[0].UserID)
}

func TestSetBlockedPersists(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.SetBlocked(context.Background(), SetBlockedRequest{UserID: "0xB1", Blocked: true}))
	assert.True(t, f.svc.blocked.IsBlocked("0xb1"))
}

func TestRouterDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.Dispatch(ctx, "GetFriends", json.RawMessage(`{"limit":10}`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("GetFriends", "ok")))

	err := f.router.Dispatch(ctx, "GetPrivateMessages", json.RawMessage(`{"limit":10}`))
	assert.ErrorContains(t, err, "validate")

	err = f.router.Dispatch(ctx, "GetFriends", json.RawMessage(`{"limit":"ten"}`))
	assert.ErrorContains(t, err, "decode")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("GetFriends", "error"))+
		testutil.ToFloat64(f.metrics.Requests.WithLabelValues("GetPrivateMessages", "error")))

	err = f.router.Dispatch(ctx, "Nope", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestRouterUpdateFriendshipByName(t *testing.T) {
	f := newFixture(t)
	err := f.router.Dispatch(context.Background(), "UpdateFriendship", json.RawMessage(`{"action":"DELETED","userId":"0xd1"}`))
	require.NoError(t, err)
	assert.NotContains(t, f.store.Snapshot().Friends, "0xd1")
	assert.Contains(t, f.router.Methods(), "SetRoomContext")
}

func TestUpdateFriendshipRejectsUnmappableID(t *testing.T) {
	f := newFixture(t)
	calls := f.srv.Calls("CreateDirectConversation")

	err := f.router.Dispatch(context.Background(), "UpdateFriendship", json.RawMessage(`{"action":"REQUESTED_TO","userId":"bob.eth"}`))
	require.ErrorIs(t, err, ErrInvalidUserID)

	snap := f.store.Snapshot()
	for _, d := range snap.SocialInfo {
		assert.NotEqual(t, "bob.eth", d.UserID)
	}
	assert.Empty(t, snap.ToFriendRequests)
	assert.Equal(t, calls, f.srv.Calls("CreateDirectConversation"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("UpdateFriendship", "error")))
}
