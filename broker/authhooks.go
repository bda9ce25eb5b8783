// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"github.com/flowmq/broker/config"
	"github.com/flowmq/broker/topics"
)

// aclAccess is the direction a static ACL rule grants.
type aclAccess int

const (
	accessRead aclAccess = 1 << iota
	accessWrite
)

// staticAuth implements Hooks from a config.AuthConfig: a fixed
// username/password table plus per-user topic-filter grants. It is the
// broker's built-in policy for standalone deployments with no external
// identity provider; anything richer is expected to implement Hooks itself
// and compose via AndChain.
type staticAuth struct {
	allowAnonymous bool
	credentials    map[string]string
	rules          map[string][]aclRule
	wildcardRules  []aclRule
}

type aclRule struct {
	filter string
	access aclAccess
}

// NewStaticAuth builds a Hooks implementation from static configuration.
func NewStaticAuth(cfg config.AuthConfig) Hooks {
	a := &staticAuth{
		allowAnonymous: cfg.AllowAnonymous,
		credentials:    make(map[string]string, len(cfg.Users)),
		rules:          make(map[string][]aclRule),
	}
	for _, u := range cfg.Users {
		a.credentials[u.Username] = u.Password
	}
	for _, r := range cfg.ACL {
		access := accessAsBits(r.Access)
		rule := aclRule{filter: r.Filter, access: access}
		if r.Username == "*" {
			a.wildcardRules = append(a.wildcardRules, rule)
		} else {
			a.rules[r.Username] = append(a.rules[r.Username], rule)
		}
	}
	return a
}

func accessAsBits(access string) aclAccess {
	switch access {
	case "read":
		return accessRead
	case "write":
		return accessWrite
	default:
		return accessRead | accessWrite
	}
}

func (a *staticAuth) OnConnect(info ConnectInfo) (ConnectDecision, byte) {
	if info.Username == "" {
		if a.allowAnonymous {
			return Accept, 0
		}
		return Reject, 0x87 // Not authorized
	}
	want, ok := a.credentials[info.Username]
	if !ok || want != string(info.Password) {
		return Reject, 0x86 // Bad username or password
	}
	return Accept, 0
}

func (a *staticAuth) OnSubscribe(clientID, filter string, requestedQoS byte) (byte, bool) {
	return requestedQoS, a.authorized(clientID, filter, accessRead)
}

func (a *staticAuth) OnPublish(clientID, topic string) bool {
	return a.authorized(clientID, topic, accessWrite)
}

// authorized reports whether username holds a rule matching topic with the
// requested access bit. A user with no applicable rules at all — neither
// its own nor a "*" wildcard rule — is granted full access, so ACL only
// restricts users (or everyone, via "*") it explicitly names.
func (a *staticAuth) authorized(username, topic string, want aclAccess) bool {
	rules, hasRules := a.rules[username]
	if !hasRules && len(a.wildcardRules) == 0 {
		return true
	}
	for _, r := range rules {
		if r.access&want != 0 && topics.TopicMatch(r.filter, topic) {
			return true
		}
	}
	for _, r := range a.wildcardRules {
		if r.access&want != 0 && topics.TopicMatch(r.filter, topic) {
			return true
		}
	}
	return false
}
