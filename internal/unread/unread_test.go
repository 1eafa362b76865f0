package unread

import (
	"context"
	"testing"

	"github.com/JFJun/kernel/internal/chat"
	"github.com/JFJun/kernel/internal/chat/memory"
	"github.com/JFJun/kernel/internal/friends"
	"github.com/JFJun/kernel/internal/identity"
	"github.com/JFJun/kernel/internal/renderer"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type muteSet struct{ mapset.Set[string] }

func (m muteSet) IsMuted(id string) bool { return m.Contains(id) }

type flags bool

func (f flags) ChannelsEnabled() bool { return bool(f) }

type world struct {
	acc   *Accounting
	mutes muteSet
	lobby string
	other string
}

func setup(t *testing.T, channels bool) world {
	t.Helper()
	ctx := context.Background()
	srv := memory.NewServer("decentraland.org")
	session, err := srv.Login(ctx, chat.LoginRequest{
		Address:   "0xa1",
		AuthChain: []chat.AuthLink{{Type: "SIGNER", Payload: "0xa1"}},
	})
	require.NoError(t, err)
	me := session.UserID()
	bob, carol, dave := srv.SocialID("0xb1"), srv.SocialID("0xc1"), srv.SocialID("0xd1")
	for _, id := range []string{bob, carol, dave} {
		srv.Register(id, id)
	}
	srv.MakeFriends(me, bob)

	withBob, err := session.CreateDirectConversation(ctx, bob)
	require.NoError(t, err)
	withCarol, err := session.CreateDirectConversation(ctx, carol)
	require.NoError(t, err)
	lobby := srv.CreateChannel("lobby", me, dave)
	other := srv.CreateChannel("other", me, dave)

	post := func(conv, sender string, n int) {
		for range n {
			_, err := srv.Post(conv, sender, "hi")
			require.NoError(t, err)
		}
	}
	post(withBob.ID, bob, 2)
	post(withCarol.ID, carol, 1)
	post(lobby, dave, 3)
	post(other, dave, 1)

	st := friends.NewStore()
	st.SetSession(session)
	st.Update(func(s *friends.State) { s.Friends = []string{"0xb1"} })
	mutes := muteSet{mapset.NewSet[string]()}
	return world{
		acc:   New(st, identity.NewMapper("decentraland.org", zap.NewNop()), mutes, flags(channels)),
		mutes: mutes,
		lobby: lobby,
		other: other,
	}
}

func TestTotalUnseen(t *testing.T) {
	w := setup(t, true)
	assert.Equal(t, 6, w.acc.Total())
	assert.Equal(t, w.acc.Total(), w.acc.Total())
}

func TestMutingZeroesChannelContribution(t *testing.T) {
	w := setup(t, true)
	w.mutes.Add(w.lobby)

	assert.Equal(t, 3, w.acc.Total())
	assert.ElementsMatch(t, []renderer.UnseenChannel{
		{ChannelID: w.lobby, Count: 0},
		{ChannelID: w.other, Count: 1},
	}, w.acc.UnseenByChannel())
}

func TestChannelsDisabled(t *testing.T) {
	w := setup(t, false)
	assert.Equal(t, 2, w.acc.Total())
	assert.Empty(t, w.acc.UnseenByChannel())
}

func TestUnseenByUser(t *testing.T) {
	w := setup(t, true)
	assert.Equal(t, []renderer.UnseenPrivate{{UserID: "0xb1", Count: 2}}, w.acc.UnseenByUser())
}
