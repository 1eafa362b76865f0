// Package identity converts between local user ids (wallet addresses) and
// chat-service social ids of the form "@<local>:<domain>".
package identity

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var socialIDPattern = regexp.MustCompile(`^@(\w+):.+$`)

// Mapper is stateless apart from the chat server domain.
type Mapper struct {
	domain string
	logger *zap.Logger
}

// NewMapper creates a mapper for social ids on domain.
func NewMapper(domain string, logger *zap.Logger) *Mapper {
	return &Mapper{domain: domain, logger: logger.Named("identity")}
}

// Domain returns the chat server domain used to build social ids.
func (m *Mapper) Domain() string { return m.domain }

// ToLocalID resolves a social id to a local id. Bare wallet addresses are
// returned unchanged. Ids matching neither form are logged and reported as
// not ok.
func (m *Mapper) ToLocalID(socialID string) (string, bool) {
	if IsAddress(socialID) {
		return socialID, true
	}
	if match := socialIDPattern.FindStringSubmatch(socialID); match != nil {
		return match[1], true
	}
	m.logger.Warn("could not resolve user id", zap.String("social_id", socialID))
	return "", false
}

// ToSocialID builds the social id for localID.
func (m *Mapper) ToSocialID(localID string) string {
	return "@" + localID + ":" + m.domain
}

// ToLocalIDs resolves every id, dropping those that fail to resolve.
func (m *Mapper) ToLocalIDs(socialIDs []string) []string {
	out := make([]string, 0, len(socialIDs))
	for _, id := range socialIDs {
		if local, ok := m.ToLocalID(id); ok {
			out = append(out, local)
		}
	}
	return out
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
