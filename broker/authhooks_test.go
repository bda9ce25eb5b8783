// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"testing"

	"github.com/flowmq/broker/config"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthAnonymousAllowedWhenConfigured(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{AllowAnonymous: true})

	decision, reason := hooks.OnConnect(ConnectInfo{ClientID: "c1"})
	require.Equal(t, Accept, decision)
	require.Zero(t, reason)
}

func TestStaticAuthAnonymousRejectedWhenNotConfigured(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{AllowAnonymous: false})

	decision, reason := hooks.OnConnect(ConnectInfo{ClientID: "c1"})
	require.Equal(t, Reject, decision)
	require.EqualValues(t, 0x87, reason)
}

func TestStaticAuthRejectsBadPassword(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
	})

	decision, reason := hooks.OnConnect(ConnectInfo{ClientID: "c1", Username: "alice", Password: []byte("wrong")})
	require.Equal(t, Reject, decision)
	require.EqualValues(t, 0x86, reason)
}

func TestStaticAuthAcceptsGoodPassword(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
	})

	decision, _ := hooks.OnConnect(ConnectInfo{ClientID: "c1", Username: "alice", Password: []byte("secret")})
	require.Equal(t, Accept, decision)
}

func TestStaticAuthUserWithoutRulesIsUnrestricted(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
	})

	require.True(t, hooks.OnPublish("alice", "anything/goes"))
	_, allow := hooks.OnSubscribe("alice", "anything/goes", 1)
	require.True(t, allow)
}

func TestStaticAuthACLRestrictsNamedUser(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
		ACL: []config.ACLRule{
			{Username: "alice", Filter: "devices/alice/#", Access: "readwrite"},
		},
	})

	require.True(t, hooks.OnPublish("alice", "devices/alice/temp"))
	require.False(t, hooks.OnPublish("alice", "devices/bob/temp"))
}

func TestStaticAuthACLReadOnlyRejectsPublish(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
		ACL: []config.ACLRule{
			{Username: "alice", Filter: "devices/alice/#", Access: "read"},
		},
	})

	require.False(t, hooks.OnPublish("alice", "devices/alice/temp"))
	_, allow := hooks.OnSubscribe("alice", "devices/alice/temp", 1)
	require.True(t, allow)
}

func TestStaticAuthWildcardRuleAppliesToEveryUser(t *testing.T) {
	hooks := NewStaticAuth(config.AuthConfig{
		Users: []config.AuthUser{{Username: "alice", Password: "secret"}},
		ACL: []config.ACLRule{
			{Username: "*", Filter: "public/#", Access: "read"},
		},
	})

	_, allow := hooks.OnSubscribe("alice", "public/news", 0)
	require.True(t, allow)
	_, allow = hooks.OnSubscribe("alice", "private/notes", 0)
	require.False(t, allow)
}
