// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pubsub

import (
	"context"
	"sync/atomic"

	"github.com/teradata-labs/loom/internal/csync"
)

// DefaultSubscriberBuffer is the default per-subscriber channel depth.
const DefaultSubscriberBuffer = 100

// subscriber holds one consumer's channel and whether it subscribed as a
// sticky subscriber; the replayed value itself is kept on the Broker.
type subscriber[T any] struct {
	ch     chan Event[T]
	sticky bool
}

// Broker fans an event stream for a single session out to any number of
// subscribers without letting a slow reader block the publisher. Each
// subscriber gets its own bounded channel; a full channel drops the event
// and increments a diagnostic counter rather than blocking Publish.
//
// Subscribers marked sticky receive the most recently published value
// immediately on Subscribe, even if they joined after it was sent — used
// for state like TokenBudgetUpdated where a new observer should see the
// current value, not wait for the next change.
type Broker[T any] struct {
	subs         *csync.Map[int, *subscriber[T]]
	nextID       atomic.Int64
	bufferSize   int
	lastValue    Event[T]
	hasLastValue bool

	dropped atomic.Int64
}

// SubscriberDropped describes a subscriber whose channel was full when an
// event had to be discarded. Broker does not publish it: a dropped event
// only increments the counter reported by DroppedCount.
type SubscriberDropped struct {
	SubscriberID int
}

// NewBroker creates a broker with the default subscriber buffer depth.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs:       csync.NewMap[int, *subscriber[T]](),
		bufferSize: DefaultSubscriberBuffer,
	}
}

// NewBrokerWithBuffer creates a broker with a custom per-subscriber buffer
// depth. A non-positive size falls back to DefaultSubscriberBuffer.
func NewBrokerWithBuffer[T any](bufferSize int) *Broker[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &Broker[T]{
		subs:       csync.NewMap[int, *subscriber[T]](),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new subscriber and returns its receive channel. The
// channel is closed when ctx is cancelled; callers must keep draining it
// until then to avoid counting as a dropped subscriber.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	return b.subscribe(ctx, false)
}

// SubscribeSticky is like Subscribe but immediately replays the broker's
// last published value (if any) before delivering new events.
func (b *Broker[T]) SubscribeSticky(ctx context.Context) <-chan Event[T] {
	return b.subscribe(ctx, true)
}

func (b *Broker[T]) subscribe(ctx context.Context, sticky bool) <-chan Event[T] {
	id := int(b.nextID.Add(1))
	sub := &subscriber[T]{ch: make(chan Event[T], b.bufferSize), sticky: sticky}
	b.subs.Set(id, sub)

	if sticky && b.hasLastValue {
		select {
		case sub.ch <- b.lastValue:
		default:
			b.dropped.Add(1)
		}
	}

	go func() {
		<-ctx.Done()
		b.subs.Delete(id)
		close(sub.ch)
	}()

	return sub.ch
}

// Publish delivers an event to every current subscriber. A subscriber whose
// channel is full does not block the others; the event is dropped for that
// subscriber and DroppedCount increments.
func (b *Broker[T]) Publish(evt Event[T]) {
	b.lastValue = evt
	b.hasLastValue = true

	b.subs.Seq(func(_ int, sub *subscriber[T]) bool {
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
		return true
	})
}

// PublishCreated publishes a CreatedEvent wrapping payload.
func (b *Broker[T]) PublishCreated(payload T) {
	b.Publish(NewCreatedEvent(payload))
}

// PublishUpdated publishes an UpdatedEvent wrapping payload.
func (b *Broker[T]) PublishUpdated(payload T) {
	b.Publish(NewUpdatedEvent(payload))
}

// PublishDeleted publishes a DeletedEvent wrapping payload.
func (b *Broker[T]) PublishDeleted(payload T) {
	b.Publish(NewDeletedEvent(payload))
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Broker[T]) SubscriberCount() int {
	n := 0
	b.subs.Seq(func(_ int, _ *subscriber[T]) bool {
		n++
		return true
	})
	return n
}

// DroppedCount returns the cumulative number of events dropped across all
// subscribers because their channel was full.
func (b *Broker[T]) DroppedCount() int64 {
	return b.dropped.Load()
}
