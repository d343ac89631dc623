package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserNormalizeMergesLegacyAvatarFields(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"canonical wins", User{ProfileImage: "p.png", Avatar: "a.png", ImageURL: "i.png"}, "p.png"},
		{"avatar fallback", User{Avatar: "a.png", ImageURL: "i.png"}, "a.png"},
		{"image url fallback", User{ImageURL: "i.png"}, "i.png"},
		{"all empty", User{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.user.Normalize()
			assert.Equal(t, tc.want, tc.user.ProfileImage)
			assert.Empty(t, tc.user.Avatar)
			assert.Empty(t, tc.user.ImageURL)
		})
	}
}

func TestParseMaintenanceStateMalformed(t *testing.T) {
	assert.Equal(t, MaintenanceState{}, ParseMaintenanceState([]byte("{not json")))
	assert.Equal(t, MaintenanceState{}, ParseMaintenanceState(nil))

	state := ParseMaintenanceState([]byte(`{"active":true,"message":"upgrade"}`))
	assert.True(t, state.Active)
	assert.Equal(t, "upgrade", state.Message)
}

func TestParseStoredAuthMalformed(t *testing.T) {
	assert.Nil(t, ParseStoredAuth([]byte("{not json")).Session())
	assert.Nil(t, ParseStoredAuth(nil).Session())

	auth := ParseStoredAuth([]byte(`{"token":"t","user":{"id":"u1"}}`))
	session := auth.Session()
	if assert.NotNil(t, session) {
		assert.Equal(t, "t", session.Token)
		assert.Equal(t, "u1", session.User.ID)
		assert.Nil(t, session.NavTree)
	}
}

func TestMaintenanceExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, MaintenanceState{Active: true}.Expired(now))
	assert.False(t, MaintenanceState{Active: true, Until: now.Add(time.Hour)}.Expired(now))
	assert.True(t, MaintenanceState{Active: true, Until: now.Add(-time.Minute)}.Expired(now))
	assert.False(t, MaintenanceState{Until: now.Add(-time.Minute)}.Expired(now))
}
