package channels

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/chat/memory"
	"github.com/JFJun/kernel/internal/config"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/metrics"
	"github.com/JFJun/kernel/internal/profiles"
	"github.com/JFJun/kernel/internal/renderer"
	"github.com/JFJun/kernel/internal/store"
	"github.com/JFJun/kernel/internal/unread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const domain = "decentraland.org"

type fixture struct {
	srv     *memory.Server
	session chat.Session
	rec     *renderer.Recorder
	cfg     *config.Source
	mutes   *Mutes
	db      *store.DB
	mgr     *Manager
}

func newFixture(t *testing.T, creator bool) *fixture {
	t.Helper()
	srv := memory.NewServer(domain)
	session, err := srv.Login(context.Background(), chat.LoginRequest{
		Address:   "0xa1",
		AuthChain: []chat.AuthLink{{Type: "SIGNER", Payload: "0xa1"}},
	})
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(t.TempDir(), "social.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mutes, err := LoadMutes(db)
	require.NoError(t, err)

	cfg := config.Default()
	if creator {
		cfg.Features.ChannelCreators.AllowList = []string{"0xA1"}
	}
	src := config.NewSource(cfg, "")

	st := friends.NewStore()
	st.SetSession(session)
	mapper := identity.NewMapper(domain, zap.NewNop())
	rec := renderer.NewRecorder()
	catalog, err := profiles.NewCatalog(64, profiles.DefaultFetcher(cfg.Chat.ServerURL), rec)
	require.NoError(t, err)
	acc := unread.New(st, mapper, mutes, src)

	return &fixture{
		srv:     srv,
		session: session,
		rec:     rec,
		cfg:     src,
		mutes:   mutes,
		db:      db,
		mgr:     NewManager(st, mapper, rec, src, mutes, acc, catalog, metrics.New(), zap.NewNop()),
	}
}

func lastJoinError(t *testing.T, rec *renderer.Recorder) renderer.ChannelError {
	t.Helper()
	e, ok := renderer.Last[renderer.JoinChannelError](rec)
	require.True(t, ok, "expected a JoinChannelError")
	return e.ChannelError
}

func TestJoinAtLimit(t *testing.T) {
	f := newFixture(t, false)
	cfg := *f.cfg.Current()
	cfg.Features.MaxChannels = 1
	f.cfg.Set(&cfg)
	f.srv.CreateChannel("lobby", f.session.UserID())
	other := f.srv.CreateChannel("other")

	f.mgr.Join(context.Background(), other)

	assert.Equal(t, renderer.ChannelError{ChannelID: other, ErrorCode: renderer.ChannelErrorLimitExceeded}, lastJoinError(t, f.rec))
	assert.Equal(t, 0, f.srv.Calls("JoinChannel"))
}

func TestCreateExisting(t *testing.T) {
	f := newFixture(t, true)
	f.srv.CreateChannel("lobby")

	f.mgr.Create(context.Background(), "lobby")

	assert.Equal(t, renderer.ChannelErrorAlreadyExists, lastJoinError(t, f.rec).ErrorCode)
	assert.Equal(t, 0, f.srv.Calls("JoinChannel"))
	assert.Empty(t, f.session.GetAllCurrentConversations())
}

func TestJoinOrCreate(t *testing.T) {
	t.Run("creates lowercased", func(t *testing.T) {
		f := newFixture(t, true)
		f.mgr.JoinOrCreate(context.Background(), "Games")

		conf, ok := renderer.Last[renderer.JoinChannelConfirmation](f.rec)
		require.True(t, ok)
		require.Len(t, conf.Channels, 1)
		assert.Equal(t, "games", conf.Channels[0].Name)
		assert.True(t, conf.Channels[0].Joined)
	})

	t.Run("joins existing", func(t *testing.T) {
		f := newFixture(t, true)
		id := f.srv.CreateChannel("games")
		f.mgr.JoinOrCreate(context.Background(), "games")

		assert.Equal(t, 1, f.srv.Calls("JoinChannel"))
		conv, ok := f.session.GetChannel(id)
		require.True(t, ok)
		assert.Contains(t, conv.UserIDs, f.session.UserID())
	})

	t.Run("without permission joins by name", func(t *testing.T) {
		f := newFixture(t, false)
		f.srv.CreateChannel("games")
		f.mgr.JoinOrCreate(context.Background(), "games")

		assert.Equal(t, 0, f.srv.Calls("GetOrCreateChannel"))
		assert.Equal(t, 1, f.srv.Calls("JoinChannel"))
	})

	t.Run("without permission reports system message", func(t *testing.T) {
		f := newFixture(t, false)
		f.mgr.JoinOrCreate(context.Background(), "games")

		msg, ok := renderer.Last[renderer.AddMessageToChatWindow](f.rec)
		require.True(t, ok)
		assert.Equal(t, renderer.MessageSystem, msg.MessageType)
		assert.Equal(t, "Decentraland", msg.Sender)
		assert.NotEmpty(t, msg.MessageID)
		assert.Empty(t, renderer.Sent[renderer.JoinChannelError](f.rec))
	})
}

func TestCreateErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		want renderer.ChannelErrorCode
	}{
		{"a", renderer.ChannelErrorWrongFormat},
		{"nearby-1", renderer.ChannelErrorReservedName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.mgr.Create(context.Background(), tt.name)
			assert.Equal(t, tt.want, lastJoinError(t, f.rec).ErrorCode)
		})
	}
}

func TestLeaveUnmutes(t *testing.T) {
	f := newFixture(t, false)
	id := f.srv.CreateChannel("lobby", f.session.UserID())
	require.NoError(t, f.mutes.Set(id, true))

	f.mgr.Leave(context.Background(), id)

	assert.False(t, f.mutes.IsMuted(id))
	persisted, err := f.db.MutedChannels()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestMute(t *testing.T) {
	f := newFixture(t, false)
	dave := f.srv.SocialID("0xd1")
	id := f.srv.CreateChannel("lobby", f.session.UserID(), dave)
	_, err := f.srv.Post(id, dave, "hello")
	require.NoError(t, err)

	f.mgr.Mute("!missing:"+domain, true)
	muteErr, ok := renderer.Last[renderer.MuteChannelError](f.rec)
	require.True(t, ok)
	assert.Equal(t, renderer.ChannelErrorUnknown, muteErr.ErrorCode)

	f.mgr.Mute(id, true)
	info, ok := renderer.Last[renderer.UpdateChannelInfo](f.rec)
	require.True(t, ok)
	require.Len(t, info.Channels, 1)
	assert.True(t, info.Channels[0].Muted)
	assert.Equal(t, 0, info.Channels[0].UnseenMessages)
	assert.True(t, f.mutes.IsMuted(id))
}

func TestSearchOrdering(t *testing.T) {
	f := newFixture(t, false)
	f.srv.CreateChannel("games-small", "@0xb1:"+domain)
	big := f.srv.CreateChannel("games-big", "@0xb1:"+domain, "@0xc1:"+domain, f.session.UserID())
	f.srv.CreateChannel("games-tie", "@0xd1:"+domain)
	f.srv.CreateChannel("music", "@0xd1:"+domain)

	f.mgr.Search(context.Background(), "games", 10, "")

	res, ok := renderer.Last[renderer.UpdateChannelSearchResults](f.rec)
	require.True(t, ok)
	var names []string
	for _, c := range res.Channels {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"games-big", "games-small", "games-tie"}, names)
	assert.True(t, res.Channels[0].Joined)
	assert.Equal(t, big, res.Channels[0].ChannelID)
	assert.Empty(t, res.Since)
}

func TestChannelMessagesBeforeCursor(t *testing.T) {
	f := newFixture(t, false)
	dave := f.srv.SocialID("0xd1")
	f.srv.Register(dave, "dave")
	id := f.srv.CreateChannel("lobby", f.session.UserID(), dave)
	var ids []string
	for range 6 {
		msgID, err := f.srv.Post(id, dave, "hi")
		require.NoError(t, err)
		ids = append(ids, msgID)
	}

	f.mgr.GetChannelMessages(context.Background(), id, ids[4], 2)

	got, ok := renderer.Last[renderer.AddChatMessages](f.rec)
	require.True(t, ok)
	require.NotEmpty(t, got.Messages)
	for _, m := range got.Messages {
		assert.NotEqual(t, ids[4], m.MessageID)
		assert.Equal(t, "0xd1", m.Sender)
		assert.Equal(t, "dave", m.SenderName)
		assert.Equal(t, renderer.MessagePublic, m.MessageType)
	}
	assert.Equal(t, ids[3], got.Messages[len(got.Messages)-1].MessageID)

	profilesSent, ok := renderer.Last[renderer.AddUserProfilesToCatalog](f.rec)
	require.True(t, ok)
	assert.Equal(t, "0xd1", profilesSent.Profiles[0].UserID)
}

func TestPage(t *testing.T) {
	tests := []struct {
		n, skip, limit int
		lo, hi         int
	}{
		{10, 0, 3, 0, 3},
		{10, 8, 5, 8, 10},
		{2, 5, 5, 2, 2},
		{5, -1, 2, 0, 2},
	}
	for _, tt := range tests {
		lo, hi := Page(tt.n, tt.skip, tt.limit)
		assert.Equal(t, [2]int{tt.lo, tt.hi}, [2]int{lo, hi})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "lobby", NormalizeName("#lobby:decentraland.org"))
	assert.Equal(t, "lobby", NormalizeName("lobby"))
	assert.True(t, IsPlaceholder("Empty room (was lobby)"))
	assert.False(t, IsPlaceholder("lobby"))
}
