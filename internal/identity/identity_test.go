package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestToLocalID(t *testing.T) {
	m := NewMapper("decentraland.org", zap.NewNop())

	tests := []struct {
		name     string
		socialID string
		want     string
		wantOK   bool
	}{
		{"social id", "@0xa1:decentraland.org", "0xa1", true},
		{"other domain", "@someone:matrix.org", "someone", true},
		{"bare address", "0x5aB2c08B3d2E5b1B4a4cD5d0e1F3b2A1c9d8e7f6", "0x5aB2c08B3d2E5b1B4a4cD5d0e1F3b2A1c9d8e7f6", true},
		{"missing at", "0xa1:decentraland.org", "", false},
		{"missing domain", "@0xa1:", "", false},
		{"empty", "", "", false},
		{"short hex is not an address", "0xa1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.ToLocalID(tt.socialID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	m := NewMapper("decentraland.org", zap.NewNop())

	for _, local := range []string{"0xa1", "mike", "0x5ab2c08b3d2e5b1b4a4cd5d0e1f3b2a1c9d8e7f6"} {
		social := m.ToSocialID(local)
		got, ok := m.ToLocalID(social)
		assert.True(t, ok, social)
		assert.Equal(t, local, got)
	}
}

func TestToSocialID(t *testing.T) {
	m := NewMapper("decentraland.org", zap.NewNop())
	assert.Equal(t, "@0xa1:decentraland.org", m.ToSocialID("0xa1"))
}

func TestToLocalIDsDropsUnparseable(t *testing.T) {
	m := NewMapper("decentraland.org", zap.NewNop())
	got := m.ToLocalIDs([]string{"@0xa1:decentraland.org", "garbage", "@0xb1:decentraland.org"})
	assert.Equal(t, []string{"0xa1", "0xb1"}, got)
}
