package redisson

import (
	. "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *T) {
	u, err := ParseURI("redis://10.0.0.1:6379")
	require.NoError(t, err)
	assert.Equal(t, RedisURI{Scheme: "redis", Host: "10.0.0.1", Port: 6379}, u)
	assert.True(t, u.IsIP())

	u, err = ParseURI("rediss://some-host.example.com:26379")
	require.NoError(t, err)
	assert.Equal(t, RedisURI{Scheme: "rediss", Host: "some-host.example.com", Port: 26379}, u)
	assert.False(t, u.IsIP())

	for _, bad := range []string{
		"",
		"10.0.0.1:6379",
		"redis://",
		"redis://10.0.0.1",
		"redis://10.0.0.1:notaport",
	} {
		_, err := ParseURI(bad)
		assert.Error(t, err, "uri %q", bad)
	}
}

func TestParseURIIPv6Normalization(t *T) {
	a, err := ParseURI("redis://[2001:db8::1]:6379")
	require.NoError(t, err)
	b, err := ParseURI("redis://[2001:0db8:0000::1]:6379")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "2001:db8::1", a.Host)
	assert.True(t, a.IsIP())
}

func TestURIRoundTrip(t *T) {
	for _, s := range []string{
		"redis://10.0.0.1:6379",
		"redis://replica.example.com:6380",
		"redis://[2001:db8::1]:6379",
	} {
		u, err := ParseURI(s)
		require.NoError(t, err)
		back, err := ParseURI(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, back)
		assert.Equal(t, u, IdentityNATMapper(back))
	}
}

func TestURIHostPort(t *T) {
	u := MakeURI("redis", "2001:db8::1", 6379)
	assert.Equal(t, "[2001:db8::1]:6379", u.HostPort())
	u = MakeURI("redis", "10.0.0.1", 6379)
	assert.Equal(t, "10.0.0.1:6379", u.HostPort())
}

func TestNATMapper(t *T) {
	remap := func(u RedisURI) RedisURI {
		if u.Host == "10.0.0.1" {
			u.Host = "192.168.0.1"
		}
		return u
	}
	mapper := NATMapper(remap)
	assert.Equal(t, "192.168.0.1", mapper(MakeURI("redis", "10.0.0.1", 6379)).Host)

	other := MakeURI("redis", "10.0.0.2", 6379)
	assert.Equal(t, other, mapper(other))
}
