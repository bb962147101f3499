package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInviteUsable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	three := 3

	cases := []struct {
		name   string
		invite Invite
		want   bool
	}{
		{"sınırsız ve süresiz", Invite{}, true},
		{"revoke edilmiş", Invite{Revoked: true}, false},
		{"süresi dolmuş", Invite{ExpiresAt: &past}, false},
		{"süresi gelmemiş", Invite{ExpiresAt: &future}, true},
		{"kullanım hakkı dolu", Invite{MaxUses: &three, Uses: 3}, false},
		{"kullanım hakkı aşılmış", Invite{MaxUses: &three, Uses: 5}, false},
		{"kullanım hakkı var", Invite{MaxUses: &three, Uses: 2}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.invite.Usable(now))
		})
	}
}
