package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProxy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     string
		want    Proxy
		wantErr bool
	}{
		{
			name: "full form",
			raw:  "1.2.3.4:1080:alice:hunter2",
			want: Proxy{Host: "1.2.3.4", Port: 1080, Username: "alice", Password: "hunter2", Raw: "1.2.3.4:1080:alice:hunter2"},
		},
		{
			name: "no credentials",
			raw:  "proxy.example.com:9050",
			want: Proxy{Host: "proxy.example.com", Port: 9050, Raw: "proxy.example.com:9050"},
		},
		{
			name: "username only",
			raw:  "1.2.3.4:1080:alice",
			want: Proxy{Host: "1.2.3.4", Port: 1080, Username: "alice", Raw: "1.2.3.4:1080:alice"},
		},
		{name: "missing port", raw: "1.2.3.4", wantErr: true},
		{name: "non-numeric port", raw: "1.2.3.4:socks", wantErr: true},
		{name: "empty host", raw: ":1080", wantErr: true},
		{name: "port out of range", raw: "1.2.3.4:70000", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseProxy(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidProxyFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProxyAddr(t *testing.T) {
	t.Parallel()

	proxy := Proxy{Host: "1.2.3.4", Port: 1080}
	assert.Equal(t, "1.2.3.4:1080", proxy.Addr())
}

func TestCredentialExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Credential{ExpiresAt: now.Add(time.Hour)}.Expired(now))
	assert.True(t, Credential{ExpiresAt: now.Add(-time.Hour)}.Expired(now))
	assert.True(t, Credential{ExpiresAt: now}.Expired(now))
}

func TestCredentialComplete(t *testing.T) {
	t.Parallel()

	full := Credential{
		Name:        "Steve",
		IdentityID:  "a-uuid",
		AccessToken: "token",
		OwnsGame:    true,
	}
	assert.True(t, full.Complete())

	noToken := full
	noToken.AccessToken = ""
	assert.False(t, noToken.Complete())

	noName := full
	noName.Name = ""
	assert.False(t, noName.Complete())

	noOwnership := full
	noOwnership.OwnsGame = false
	assert.False(t, noOwnership.Complete())
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	location, ok := ParseLocation(`{"dimension":"X","x":1,"y":2,"z":3}`)
	require.True(t, ok)
	assert.Equal(t, Location{Dimension: "X", X: 1, Y: 2, Z: 3}, location)

	_, ok = ParseLocation("You are now AFK.")
	assert.False(t, ok)

	_, ok = ParseLocation("{not json}")
	assert.False(t, ok)

	_, ok = ParseLocation("")
	assert.False(t, ok)
}

func TestClassifyBan(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		reason string
		want   string
	}{
		{name: "boosting", reason: "You are permanently banned for boosting!", want: "Boosting"},
		{name: "security", reason: "banned: suspicious activity on your account security", want: "Suspicious Activity"},
		{name: "suspicious", reason: "Banned for suspicious behaviour", want: "Suspicious Activity"},
		{name: "cheating", reason: "You have been banned for cheating.", want: "Cheating"},
		{name: "verbatim", reason: "You are banned until tomorrow", want: "You are banned until tomorrow"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ClassifyBan(tc.reason))
		})
	}
}

func TestIsBanKick(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBanKick("You are permanently BANNED from this server"))
	assert.False(t, IsBanKick("Server closed"))
}

func TestIsBenignLoginError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBenignLoginError(errors.New(`TypeError [ERR_INVALID_ARG_TYPE]: The "login.toServer" argument must be of type object`)))
	assert.True(t, IsBenignLoginError(errors.New("invalid argument for login.toServer")))
	assert.False(t, IsBenignLoginError(errors.New("Invalid session: login rejected")), "transient login failures must stay restartable")
	assert.False(t, IsBenignLoginError(errors.New("login.toServer write failed")), "needs the invalid-argument shape, not just the packet name")
	assert.False(t, IsBenignLoginError(errors.New("connection reset by peer")))
	assert.False(t, IsBenignLoginError(nil))
}

func TestChainStageError(t *testing.T) {
	t.Parallel()

	cause := errors.New("status 401")
	err := &ChainStageError{Stage: "xsts", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "xsts")

	var stageErr *ChainStageError
	require.ErrorAs(t, error(err), &stageErr)
	assert.Equal(t, "xsts", stageErr.Stage)
}
