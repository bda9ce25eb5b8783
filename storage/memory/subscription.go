// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"strings"
	"sync"

	"github.com/flowmq/broker/storage"
	"github.com/flowmq/broker/topics"
)

var _ storage.SubscriptionStore = (*SubscriptionStore)(nil)

// groupNodeKeyPrefix marks a trie entry as a shared-subscription group rather
// than a single client. It cannot collide with a real client ID because
// client IDs never contain a NUL byte.
const groupNodeKeyPrefix = "\x00share:"

func groupNodeKey(shareName string) string {
	return groupNodeKeyPrefix + shareName
}

// shareKey identifies a shared-subscription group by its topic filter and
// share name, e.g. "$share/g1/sensors/#" -> {filter: "sensors/#", share: "g1"}.
type shareKey struct {
	filter string
	share  string
}

// SubscriptionStore is an in-memory implementation of store.SubscriptionStore.
// It uses a trie for efficient topic matching.
type SubscriptionStore struct {
	mu    sync.RWMutex
	root  *trieNode
	count int
	// byClient provides O(1) lookup for client's subscriptions
	byClient map[string]map[string]*storage.Subscription // clientID -> filter -> subscription
	// shareGroups tracks round-robin membership for shared subscriptions.
	shareGroups map[shareKey]*topics.ShareGroup
	// isLive reports whether a client ID currently holds a connected
	// session; nil treats every member as live. Set via SetLivenessCheck.
	isLive func(clientID string) bool
}

type trieNode struct {
	children map[string]*trieNode
	subs     map[string]*storage.Subscription // clientID (or share group key) -> subscription at this level
}

func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[string]*trieNode),
		subs:     make(map[string]*storage.Subscription),
	}
}

// NewSubscriptionStore creates a new in-memory subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		root:        newTrieNode(),
		byClient:    make(map[string]map[string]*storage.Subscription),
		shareGroups: make(map[shareKey]*topics.ShareGroup),
	}
}

// SetLivenessCheck installs the predicate used to skip disconnected members
// of a shared-subscription group during round robin. The broker wires this
// to its session table after construction; without it every member is
// treated as live.
func (s *SubscriptionStore) SetLivenessCheck(isLive func(clientID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLive = isLive
}

// Add adds or updates a subscription. Shared subscriptions ("$share/name/filter")
// are collapsed into a single trie entry per group; membership and round-robin
// delivery order are tracked separately in shareGroups.
func (s *SubscriptionStore) Add(sub *storage.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shareName, topicFilter, isShared := topics.ParseShared(sub.Filter)

	// Check if this is an update
	isNew := true
	if clientSubs, ok := s.byClient[sub.ClientID]; ok {
		if _, exists := clientSubs[sub.Filter]; exists {
			isNew = false
		}
	}

	// Navigate/create trie path
	levels := strings.Split(topicFilter, "/")
	node := s.root
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			child = newTrieNode()
			node.children[level] = child
		}
		node = child
	}

	if isShared {
		key := shareKey{filter: topicFilter, share: shareName}
		group, ok := s.shareGroups[key]
		if !ok {
			group = &topics.ShareGroup{Name: shareName, TopicFilter: topicFilter}
			s.shareGroups[key] = group
		}
		group.AddSubscriber(sub.ClientID)

		groupSub := storage.CopySubscription(sub)
		groupSub.Filter = topicFilter
		groupSub.Options.ConsumerGroup = shareName
		node.subs[groupNodeKey(shareName)] = groupSub
	} else {
		node.subs[sub.ClientID] = storage.CopySubscription(sub)
	}

	// Store in client index, keyed by the original (possibly $share/...) filter.
	if s.byClient[sub.ClientID] == nil {
		s.byClient[sub.ClientID] = make(map[string]*storage.Subscription)
	}
	s.byClient[sub.ClientID][sub.Filter] = storage.CopySubscription(sub)

	if isNew {
		s.count++
	}

	return nil
}

// Remove removes a subscription.
func (s *SubscriptionStore) Remove(clientID, filter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientSubs, ok := s.byClient[clientID]
	if !ok {
		return nil
	}
	if _, exists := clientSubs[filter]; !exists {
		return nil
	}

	s.removeFromTrie(clientID, filter)

	delete(clientSubs, filter)
	if len(clientSubs) == 0 {
		delete(s.byClient, clientID)
	}

	s.count--
	return nil
}

// removeFromTrie drops a client's entry from the trie, tearing down a shared
// group's node once its last member leaves.
func (s *SubscriptionStore) removeFromTrie(clientID, filter string) {
	shareName, topicFilter, isShared := topics.ParseShared(filter)

	levels := strings.Split(topicFilter, "/")
	node := s.root
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			return
		}
		node = child
	}

	if !isShared {
		delete(node.subs, clientID)
		return
	}

	key := shareKey{filter: topicFilter, share: shareName}
	group, ok := s.shareGroups[key]
	if !ok {
		return
	}
	group.RemoveSubscriber(clientID)
	if group.IsEmpty() {
		delete(node.subs, groupNodeKey(shareName))
		delete(s.shareGroups, key)
	}
}

// RemoveAll removes all subscriptions for a client.
func (s *SubscriptionStore) RemoveAll(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientSubs, ok := s.byClient[clientID]
	if !ok {
		return nil
	}

	for filter := range clientSubs {
		s.removeFromTrie(clientID, filter)
		s.count--
	}

	delete(s.byClient, clientID)
	return nil
}

// GetForClient returns all subscriptions for a client.
func (s *SubscriptionStore) GetForClient(clientID string) ([]*storage.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clientSubs, ok := s.byClient[clientID]
	if !ok {
		return nil, nil
	}

	result := make([]*storage.Subscription, 0, len(clientSubs))
	for _, sub := range clientSubs {
		result = append(result, storage.CopySubscription(sub))
	}
	return result, nil
}

// Match returns all subscriptions matching a topic. Topics beginning with '$'
// (e.g. $SYS) are only matched by filters that also start with '$' at the
// first level; wildcards can never occupy that first level for such topics.
// Shared-subscription groups are expanded to a single member via round robin.
func (s *SubscriptionStore) Match(topic string) ([]*storage.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := strings.Split(topic, "/")
	var matched []*storage.Subscription
	s.matchLevel(s.root, levels, 0, &matched, strings.HasPrefix(topic, "$"))

	return s.deduplicate(matched), nil
}

func (s *SubscriptionStore) matchLevel(node *trieNode, levels []string, index int, matched *[]*storage.Subscription, dollarTopic bool) {
	excludeWildcards := dollarTopic && index == 0

	if index == len(levels) {
		for _, sub := range node.subs {
			*matched = append(*matched, s.expandShare(sub))
		}
		if !excludeWildcards {
			if wild, ok := node.children["#"]; ok {
				for _, sub := range wild.subs {
					*matched = append(*matched, s.expandShare(sub))
				}
			}
		}
		return
	}

	level := levels[index]

	// Exact match traversal
	if child, ok := node.children[level]; ok {
		s.matchLevel(child, levels, index+1, matched, dollarTopic)
	}

	if excludeWildcards {
		return
	}

	// Single level wildcard '+'
	if child, ok := node.children["+"]; ok {
		s.matchLevel(child, levels, index+1, matched, dollarTopic)
	}

	// Multi-level wildcard '#'
	if child, ok := node.children["#"]; ok {
		for _, sub := range child.subs {
			*matched = append(*matched, s.expandShare(sub))
		}
	}
}

// expandShare copies sub, resolving shared-subscription placeholders to the
// next real subscriber in the group's round-robin order.
func (s *SubscriptionStore) expandShare(sub *storage.Subscription) *storage.Subscription {
	cp := storage.CopySubscription(sub)
	if cp.Options.ConsumerGroup == "" {
		return cp
	}
	key := shareKey{filter: cp.Filter, share: cp.Options.ConsumerGroup}
	if group, ok := s.shareGroups[key]; ok {
		if next := group.NextSubscriber(s.isLive); next != "" {
			cp.ClientID = next
		}
	}
	return cp
}

// deduplicate removes duplicate subscriptions for the same client, keeping highest QoS.
func (s *SubscriptionStore) deduplicate(subs []*storage.Subscription) []*storage.Subscription {
	seen := make(map[string]*storage.Subscription)
	for _, sub := range subs {
		if existing, ok := seen[sub.ClientID]; ok {
			if sub.QoS > existing.QoS {
				seen[sub.ClientID] = sub
			}
		} else {
			seen[sub.ClientID] = sub
		}
	}

	result := make([]*storage.Subscription, 0, len(seen))
	for _, sub := range seen {
		result = append(result, sub)
	}
	return result
}

// Count returns total subscription count.
func (s *SubscriptionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
