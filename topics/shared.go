// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package topics

import "strings"

// ParseShared splits a shared-subscription filter of the form
// "$share/{ShareName}/{TopicFilter}" into its parts. A filter without the
// "$share/" prefix, or one missing the topic-filter segment, is reported
// as not shared and returned unchanged as topicFilter.
//
//	ParseShared("$share/group1/sensors/#") -> ("group1", "sensors/#", true)
//	ParseShared("sensors/#")                -> ("", "sensors/#", false)
func ParseShared(filter string) (shareName, topicFilter string, isShared bool) {
	if !strings.HasPrefix(filter, "$share/") {
		return "", filter, false
	}

	rest := filter[len("$share/"):]
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", filter, false
	}

	return parts[0], parts[1], true
}

// IsShared reports whether filter names a shared subscription.
func IsShared(filter string) bool {
	return strings.HasPrefix(filter, "$share/")
}

// ShareGroup tracks the members of one shared-subscription group and hands
// out the next member in round-robin order.
type ShareGroup struct {
	Name        string
	TopicFilter string
	Subscribers []string
	lastIndex   int
}

// NextSubscriber returns the next member in round-robin order, skipping any
// member isLive reports as down so a disconnected subscriber's turn falls
// through to the next live one instead of parking the message in an offline
// queue while a live member sits idle. isLive may be nil, in which case
// every member is treated as live. Returns "" if the group has no members
// or none of them are live.
func (g *ShareGroup) NextSubscriber(isLive func(clientID string) bool) string {
	n := len(g.Subscribers)
	if n == 0 {
		return ""
	}

	idx := g.lastIndex
	for i := 0; i < n; i++ {
		candidate := g.Subscribers[idx]
		idx = (idx + 1) % n
		if isLive == nil || isLive(candidate) {
			g.lastIndex = idx
			return candidate
		}
	}
	g.lastIndex = idx
	return ""
}

// AddSubscriber adds clientID to the group if it is not already a member.
// Returns true if it was added.
func (g *ShareGroup) AddSubscriber(clientID string) bool {
	for _, sub := range g.Subscribers {
		if sub == clientID {
			return false
		}
	}

	g.Subscribers = append(g.Subscribers, clientID)
	return true
}

// RemoveSubscriber removes clientID from the group. Returns true if it was
// a member.
func (g *ShareGroup) RemoveSubscriber(clientID string) bool {
	for i, sub := range g.Subscribers {
		if sub == clientID {
			g.Subscribers[i] = g.Subscribers[len(g.Subscribers)-1]
			g.Subscribers = g.Subscribers[:len(g.Subscribers)-1]

			if g.lastIndex >= len(g.Subscribers) {
				g.lastIndex = 0
			}

			return true
		}
	}
	return false
}

// IsEmpty reports whether the group has no members.
func (g *ShareGroup) IsEmpty() bool {
	return len(g.Subscribers) == 0
}
