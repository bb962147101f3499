package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionHas(t *testing.T) {
	p := PermSendMessages | PermViewChannel

	assert.True(t, p.Has(PermSendMessages))
	assert.False(t, p.Has(PermManageChannels))

	// Administrator her şeye izin verir
	admin := PermAdministrator
	assert.True(t, admin.Has(PermManageServer))
	assert.True(t, admin.Has(PermBanMembers))

	// HasBit admin kısa devresi yapmaz
	assert.False(t, admin.HasBit(PermManageServer))
}

func TestApplyOverridesOrder(t *testing.T) {
	base := PermViewChannel | PermSendMessages

	overrides := []ChannelOverride{
		// rol allow: connectVoice ekler
		{SubjectKind: OverrideSubjectRole, SubjectID: "r1", Allow: PermConnectVoice},
		// rol deny: sendMessages düşürür
		{SubjectKind: OverrideSubjectRole, SubjectID: "r1", Deny: PermSendMessages},
		// user allow: sendMessages geri verir (user, rolü ezer)
		{SubjectKind: OverrideSubjectUser, SubjectID: "u1", Allow: PermSendMessages},
		// user deny: connectVoice düşürür (user deny son sözü söyler)
		{SubjectKind: OverrideSubjectUser, SubjectID: "u1", Deny: PermConnectVoice},
	}

	eff := ApplyOverrides(base, []string{"r1"}, "u1", overrides)

	assert.True(t, eff.HasBit(PermSendMessages), "user allow rol deny'ı ezmeli")
	assert.False(t, eff.HasBit(PermConnectVoice), "user deny en son uygulanmalı")
	assert.True(t, eff.HasBit(PermViewChannel))
}

func TestApplyOverridesIgnoresForeignSubjects(t *testing.T) {
	base := PermViewChannel

	overrides := []ChannelOverride{
		{SubjectKind: OverrideSubjectRole, SubjectID: "other-role", Deny: PermViewChannel},
		{SubjectKind: OverrideSubjectUser, SubjectID: "other-user", Deny: PermViewChannel},
	}

	eff := ApplyOverrides(base, []string{"r1"}, "u1", overrides)
	assert.True(t, eff.HasBit(PermViewChannel), "başkasının override'ı uygulanmamalı")
}

func TestMaskWithoutView(t *testing.T) {
	// viewChannel yoksa her şey maskelenir
	p := PermSendMessages | PermManageMessages
	assert.Equal(t, Permission(0), MaskWithoutView(p))

	// viewChannel varsa dokunulmaz
	p |= PermViewChannel
	assert.Equal(t, p, MaskWithoutView(p))
}

func TestApplyTimeout(t *testing.T) {
	now := time.Now()
	p := PermViewChannel | PermSendMessages | PermSpeak | PermConnectVoice | PermAddReaction | PermManageChannels

	// Aktif timeout konuşma yetkilerini düşürür
	until := now.Add(time.Hour)
	eff := ApplyTimeout(p, &until, now)
	assert.False(t, eff.HasBit(PermSendMessages))
	assert.False(t, eff.HasBit(PermSpeak))
	assert.False(t, eff.HasBit(PermConnectVoice))
	assert.False(t, eff.HasBit(PermAddReaction))
	assert.True(t, eff.HasBit(PermViewChannel), "görünürlük korunur")
	assert.True(t, eff.HasBit(PermManageChannels), "yönetim bitleri korunur")

	// Süresi geçmiş timeout etkisizdir
	past := now.Add(-time.Minute)
	assert.Equal(t, p, ApplyTimeout(p, &past, now))

	// nil timeout etkisizdir
	assert.Equal(t, p, ApplyTimeout(p, nil, now))
}

func TestHighestPosition(t *testing.T) {
	roles := []Role{
		{ID: "a", Position: 3},
		{ID: "b", Position: 7},
		{ID: "everyone", Position: 0, IsEveryone: true},
	}

	assert.Equal(t, 7, HighestPosition(roles, false))
	assert.Greater(t, HighestPosition(nil, true), 1<<30, "owner her zaman en üsttedir")
	assert.Equal(t, 0, HighestPosition(nil, false))
}
