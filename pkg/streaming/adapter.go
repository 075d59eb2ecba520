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

// Package streaming converts a provider's server-sent event byte stream into
// a canonical sequence of LLMChunk values, accumulating tool-call argument
// fragments that arrive split across several chunks.
package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/r3labs/sse/v2"

	"github.com/teradata-labs/loom/pkg/types"
)

// Mode selects how the adapter reacts to a malformed payload.
type Mode int

const (
	// Strict rejects the stream with an error on the first malformed payload.
	Strict Mode = iota
	// Lenient skips malformed payloads (keep-alives, unknown frames) and
	// continues reading.
	Lenient
)

// ChunkKind discriminates the canonical chunk variants.
type ChunkKind int

const (
	ChunkToken ChunkKind = iota
	ChunkToolCalls
	ChunkDone
)

// Chunk is the canonical output unit of the adapter: a token delta, a
// finalized batch of accumulated tool calls, or a stream-end marker.
type Chunk struct {
	Kind      ChunkKind
	Token     string
	ToolCalls []types.ToolCall
}

// doneSentinel is the provider-agnostic SSE terminator payload.
const doneSentinel = "[DONE]"

// rawEvent mirrors the subset of provider event shapes the adapter
// understands; it is deliberately loose (all fields optional) since
// different providers populate different subsets.
type rawEvent struct {
	Type  string `json:"type"`
	Index *int   `json:"index"`
	Delta *struct {
		Text string `json:"text"`
	} `json:"delta"`
	ToolCallDelta *struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_call_delta"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
}

// toolAccum tracks one in-progress tool call by its provider-assigned index.
type toolAccum struct {
	id        string
	typ       string
	name      string
	arguments strings.Builder
}

// Adapter parses one SSE stream into canonical chunks. An Adapter is
// single-use and single-threaded; create one per stream.
type Adapter struct {
	mode       Mode
	idPrefix   string
	synthCount int
	tools      map[int]*toolAccum
	order      []int
}

// NewAdapter creates an adapter. idPrefix is used to synthesise tool-call
// ids when a provider's first chunk for an index omits one.
func NewAdapter(mode Mode, idPrefix string) *Adapter {
	if idPrefix == "" {
		idPrefix = "call"
	}
	return &Adapter{
		mode:     mode,
		idPrefix: idPrefix,
		tools:    make(map[int]*toolAccum),
	}
}

// Parse reads frames from r until EOF, ctx cancellation, or a terminator,
// invoking emit for each canonical chunk in order. On cancellation it stops
// reading and returns ctx.Err() without emitting a Done chunk; buffered but
// unflushed tool-call state is discarded.
func (a *Adapter) Parse(ctx context.Context, r io.Reader, emit func(Chunk) error) error {
	reader := sse.NewEventStreamReader(r, 1<<20)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return a.finish(emit)
			}
			return fmt.Errorf("reading SSE frame: %w", err)
		}

		payload, ok := extractDataPayload(raw)
		if !ok {
			continue
		}
		if payload == doneSentinel {
			return a.finish(emit)
		}

		var ev rawEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			if a.mode == Strict {
				return fmt.Errorf("malformed stream payload: %w", err)
			}
			continue
		}

		if err := a.handleEvent(ev, emit); err != nil {
			return err
		}
	}
}

func (a *Adapter) handleEvent(ev rawEvent, emit func(Chunk) error) error {
	switch {
	case ev.Delta != nil && ev.Delta.Text != "":
		return emit(Chunk{Kind: ChunkToken, Token: ev.Delta.Text})

	case ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use":
		idx := 0
		if ev.Index != nil {
			idx = *ev.Index
		}
		a.ensureAccum(idx, ev.ContentBlock.ID, "function", ev.ContentBlock.Name)
		return nil

	case ev.ToolCallDelta != nil:
		d := ev.ToolCallDelta
		accum := a.ensureAccum(d.Index, d.ID, d.Type, d.Function.Name)
		accum.arguments.WriteString(d.Function.Arguments)
		return nil
	}
	return nil
}

// ensureAccum returns the accumulator for idx, creating it on first sight
// and filling in id/type/name from whichever chunk first supplies them.
func (a *Adapter) ensureAccum(idx int, id, typ, name string) *toolAccum {
	accum, ok := a.tools[idx]
	if !ok {
		accum = &toolAccum{}
		a.tools[idx] = accum
		a.order = append(a.order, idx)
	}
	if accum.id == "" {
		if id == "" {
			a.synthCount++
			id = fmt.Sprintf("%s_%d", a.idPrefix, a.synthCount)
		}
		accum.id = id
	}
	if accum.typ == "" {
		if typ == "" {
			typ = "function"
		}
		accum.typ = typ
	}
	if accum.name == "" {
		accum.name = name
	}
	return accum
}

// finish flushes any accumulated tool calls (sorted by index) followed by a
// Done chunk.
func (a *Adapter) finish(emit func(Chunk) error) error {
	if len(a.order) > 0 {
		sort.Ints(a.order)
		calls := make([]types.ToolCall, 0, len(a.order))
		for _, idx := range a.order {
			accum := a.tools[idx]
			args := map[string]interface{}{}
			if s := accum.arguments.String(); s != "" {
				if err := json.Unmarshal([]byte(s), &args); err != nil {
					args = map[string]interface{}{"_raw": s}
				}
			}
			calls = append(calls, types.ToolCall{ID: accum.id, Name: accum.name, Input: args})
		}
		if err := emit(Chunk{Kind: ChunkToolCalls, ToolCalls: calls}); err != nil {
			return err
		}
	}
	return emit(Chunk{Kind: ChunkDone})
}

// extractDataPayload pulls the "data: ..." payload out of one raw SSE frame,
// ignoring "event:"/"id:"/"retry:" lines and comments.
func extractDataPayload(raw []byte) (string, bool) {
	lines := bytes.Split(raw, []byte("\n"))
	var data []string
	for _, line := range lines {
		line = bytes.TrimRight(line, "\r")
		if bytes.HasPrefix(line, []byte("data:")) {
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(string(line), "data:"), " "))
		}
	}
	if len(data) == 0 {
		return "", false
	}
	return strings.Join(data, "\n"), true
}
