// Package ringbus implements a topic-partitioned, priority-ordered, bounded
// pub/sub message bus with per-subscriber read markers.
package ringbus

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTopicCapacity is the per-topic message retention ceiling.
const DefaultTopicCapacity = 10_000

// DefaultReadLimit is the default limit for Read/ReadTopic.
const DefaultReadLimit = 50

// Message is one bus message. ReadBy is a comma-joined list of subscriber
// handles that have consumed it.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Sender    string `json:"sender"`
	Priority  int    `json:"priority"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
	ReadBy    string `json:"readBy"`
}

func (m *Message) hasRead(handle string) bool {
	if m.ReadBy == "" {
		return false
	}
	for _, h := range strings.Split(m.ReadBy, ",") {
		if h == handle {
			return true
		}
	}
	return false
}

func (m *Message) markRead(handle string) {
	if m.hasRead(handle) {
		return
	}
	if m.ReadBy != "" {
		m.ReadBy += ","
	}
	m.ReadBy += handle
}

// TopicCount is one entry of Stats' per-topic breakdown.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Stats summarizes bus occupancy.
type Stats struct {
	TotalMessages    int          `json:"totalMessages"`
	TopicCount       int          `json:"topicCount"`
	SubscriberCount  int          `json:"subscriberCount"`
	MessagesPerTopic []TopicCount `json:"messagesPerTopic"`
}

// Clock is overridable for deterministic tests.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Bus is a topic-partitioned, bounded, priority-ordered pub/sub queue. Not
// safe for concurrent use — one caller goroutine per instance.
type Bus struct {
	clock Clock

	channels    map[string][]Message
	subscribers map[string]map[string]struct{}
	nextID      uint64

	topicCapacity int
}

// New constructs an empty bus with the default per-topic capacity.
func New() *Bus {
	return &Bus{
		clock:         defaultClock,
		channels:      make(map[string][]Message),
		subscribers:   make(map[string]map[string]struct{}),
		nextID:        1,
		topicCapacity: DefaultTopicCapacity,
	}
}

// NewWithClock is like New but with a deterministic clock for tests.
func NewWithClock(clock Clock) *Bus {
	b := New()
	b.clock = clock
	return b
}

// Publish appends a message to topic's channel, evicting the oldest message
// first if the channel is at capacity. priority is clamped to [0,3]. Returns
// the minted message ID ("msg_<n>").
func (b *Bus) Publish(topic, sender string, priority int, payload string) string {
	if priority < 0 {
		priority = 0
	}
	if priority > 3 {
		priority = 3
	}

	id := fmt.Sprintf("msg_%d", b.nextID)
	b.nextID++

	msg := Message{
		ID:        id,
		Topic:     topic,
		Sender:    sender,
		Priority:  priority,
		Payload:   payload,
		Timestamp: b.clock(),
	}

	channel := b.channels[topic]
	if len(channel) >= b.topicCapacity {
		channel = channel[1:]
	}
	b.channels[topic] = append(channel, msg)

	return id
}

// Subscribe registers handle as a reader of topic.
func (b *Bus) Subscribe(handle, topic string) {
	topics, ok := b.subscribers[handle]
	if !ok {
		topics = make(map[string]struct{})
		b.subscribers[handle] = topics
	}
	topics[topic] = struct{}{}
}

// Unsubscribe removes handle as a reader of topic.
func (b *Bus) Unsubscribe(handle, topic string) {
	if topics, ok := b.subscribers[handle]; ok {
		delete(topics, topic)
	}
}

// Read returns up to limit messages across every topic handle subscribes
// to, newest-first per topic, optionally skipping already-read messages,
// then re-sorted by priority descending and timestamp ascending. Returned
// messages are marked as read by handle. limit <= 0 uses DefaultReadLimit.
func (b *Bus) Read(handle string, limit int, unreadOnly bool) []Message {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	topics := b.subscribers[handle]
	var collected []Message

	for topic := range topics {
		channel := b.channels[topic]
		for i := len(channel) - 1; i >= 0; i-- {
			if len(collected) >= limit {
				break
			}
			msg := channel[i]
			if unreadOnly && msg.hasRead(handle) {
				continue
			}
			collected = append(collected, msg)
		}
	}

	sort.SliceStable(collected, func(i, j int) bool {
		if collected[i].Priority != collected[j].Priority {
			return collected[i].Priority > collected[j].Priority
		}
		return collected[i].Timestamp < collected[j].Timestamp
	})

	if len(collected) > limit {
		collected = collected[:limit]
	}

	for _, msg := range collected {
		channel := b.channels[msg.Topic]
		for i := range channel {
			if channel[i].ID == msg.ID {
				channel[i].markRead(handle)
				break
			}
		}
	}

	// Re-read so the returned copies carry the updated ReadBy value.
	out := make([]Message, len(collected))
	for i, msg := range collected {
		channel := b.channels[msg.Topic]
		for _, m := range channel {
			if m.ID == msg.ID {
				out[i] = m
				break
			}
		}
	}
	return out
}

// ReadTopic returns up to limit messages from topic, newest-first, without
// mutating read state. limit <= 0 uses DefaultReadLimit.
func (b *Bus) ReadTopic(topic string, limit int) []Message {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	channel := b.channels[topic]

	n := limit
	if n > len(channel) {
		n = len(channel)
	}
	out := make([]Message, 0, n)
	for i := len(channel) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, channel[i])
	}
	return out
}

// Stats summarizes current bus occupancy.
func (b *Bus) Stats() Stats {
	var total int
	perTopic := make([]TopicCount, 0, len(b.channels))
	for topic, channel := range b.channels {
		total += len(channel)
		perTopic = append(perTopic, TopicCount{Topic: topic, Count: len(channel)})
	}
	sort.Slice(perTopic, func(i, j int) bool { return perTopic[i].Count > perTopic[j].Count })

	return Stats{
		TotalMessages:    total,
		TopicCount:       len(b.channels),
		SubscriberCount:  len(b.subscribers),
		MessagesPerTopic: perTopic,
	}
}

// DrainOld removes messages older than maxAgeMs across every topic and
// returns the total number removed.
func (b *Bus) DrainOld(maxAgeMs int64) int {
	now := b.clock()
	cutoff := now - maxAgeMs
	removed := 0

	for topic, channel := range b.channels {
		kept := channel[:0:0]
		for _, msg := range channel {
			if msg.Timestamp >= cutoff {
				kept = append(kept, msg)
			}
		}
		removed += len(channel) - len(kept)
		b.channels[topic] = kept
	}

	return removed
}
