// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

import (
	"strings"
	"time"
)

// StreamChunk is one delta appended to a StreamingMessage. Sequence numbers
// are assigned by StreamingMessage.AppendChunk and form a contiguous 1..N
// run within one message.
type StreamChunk struct {
	Sequence int
	Delta    string
	ArrivedAt time.Time
	// Interval is the wall-clock gap since the previous chunk (zero for the
	// first chunk).
	Interval time.Duration
}

// FinishReason explains why a StreamingMessage stopped accumulating chunks.
type FinishReason string

const (
	FinishEndTurn   FinishReason = "end_turn"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishToolUse   FinishReason = "tool_use"
	FinishCancelled FinishReason = "cancelled"
	FinishError     FinishReason = "error"
)

// StreamingMessage is an Assistant message under construction. It
// accumulates chunks until finalised; Content always equals the
// concatenation of all chunk deltas in sequence order, and once
// CompletedAt is non-zero no further chunks are accepted.
type StreamingMessage struct {
	MessageID   string
	Content     strings.Builder
	Chunks      []StreamChunk
	ToolCalls   []ToolCall
	StartedAt   time.Time
	CompletedAt time.Time
	FinishReason FinishReason
	Usage       Usage
	lastChunkAt time.Time
}

// NewStreamingMessage starts a new in-progress streaming message.
func NewStreamingMessage(messageID string, startedAt time.Time) *StreamingMessage {
	return &StreamingMessage{
		MessageID: messageID,
		StartedAt: startedAt,
	}
}

// AppendChunk appends a delta and assigns it the next sequence number.
// Returns false (no-op) if the message is already completed.
func (m *StreamingMessage) AppendChunk(delta string, at time.Time) bool {
	if !m.CompletedAt.IsZero() {
		return false
	}
	interval := time.Duration(0)
	if !m.lastChunkAt.IsZero() {
		interval = at.Sub(m.lastChunkAt)
	}
	m.Chunks = append(m.Chunks, StreamChunk{
		Sequence:  len(m.Chunks) + 1,
		Delta:     delta,
		ArrivedAt: at,
		Interval:  interval,
	})
	m.Content.WriteString(delta)
	m.lastChunkAt = at
	return true
}

// SetToolCalls records the accumulated tool calls for this message. Only
// meaningful before Finalize.
func (m *StreamingMessage) SetToolCalls(calls []ToolCall) {
	m.ToolCalls = calls
}

// Finalize marks the message complete; no further chunks are accepted
// after this call.
func (m *StreamingMessage) Finalize(reason FinishReason, usage Usage, at time.Time) {
	if !m.CompletedAt.IsZero() {
		return
	}
	m.FinishReason = reason
	m.Usage = usage
	m.CompletedAt = at
}

// IsComplete reports whether Finalize has been called.
func (m *StreamingMessage) IsComplete() bool {
	return !m.CompletedAt.IsZero()
}

// ToMessage converts the streaming message into a finalised Assistant
// Message once complete.
func (m *StreamingMessage) ToMessage() Message {
	return Message{
		ID:         m.MessageID,
		Role:       "assistant",
		Content:    m.Content.String(),
		ToolCalls:  m.ToolCalls,
		Timestamp:  m.StartedAt,
		TokenCount: m.Usage.OutputTokens,
	}
}
