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
package shuttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToolCallResolvesAlias(t *testing.T) {
	req, err := NormalizeToolCall("call-1", "run_command", `{"command":"ls"}`)
	require.NoError(t, err)
	assert.Equal(t, "execute_command", req.ToolName)
	assert.Equal(t, "ls", req.Arguments["command"])
}

func TestNormalizeToolCallEmptyArgumentsBecomeEmptyMap(t *testing.T) {
	req, err := NormalizeToolCall("call-1", "list_files", "")
	require.NoError(t, err)
	assert.Empty(t, req.Arguments)
}

func TestNormalizeToolCallInvalidJSONErrors(t *testing.T) {
	_, err := NormalizeToolCall("call-1", "execute_command", "{not json")
	assert.Error(t, err)
}

func TestPermissionContextsForExecuteCommandSplitsDestructive(t *testing.T) {
	req, err := NormalizeToolCall("call-1", "execute_command", `{"command":"rm -rf /tmp/x"}`)
	require.NoError(t, err)

	contexts := PermissionContextsFor(req, "session-1")
	require.Len(t, contexts, 2)

	var classes []string
	for _, c := range contexts {
		classes = append(classes, string(c.Class))
	}
	assert.Contains(t, classes, "execute-command")
	assert.Contains(t, classes, "delete-operation")
}

func TestPermissionContextsForUnknownToolIsEmpty(t *testing.T) {
	req, err := NormalizeToolCall("call-1", "read_file", `{"path":"a.txt"}`)
	require.NoError(t, err)
	assert.Empty(t, PermissionContextsFor(req, "session-1"))
}

func TestParseEnvelopeSuccess(t *testing.T) {
	env, ok := ParseEnvelope(map[string]interface{}{"type": "success", "result": "done"})
	require.True(t, ok)
	assert.Equal(t, ResultSuccess, env.Kind)
	assert.Equal(t, "done", env.Result)
}

func TestParseEnvelopeNeedClarification(t *testing.T) {
	env, ok := ParseEnvelope(map[string]interface{}{
		"type":     "need_clarification",
		"question": "which file?",
		"options":  []string{"a.txt", "b.txt"},
	})
	require.True(t, ok)
	assert.Equal(t, ResultNeedClarification, env.Kind)
	assert.Equal(t, "which file?", env.Question)
	assert.Equal(t, []string{"a.txt", "b.txt"}, env.Options)
}

func TestParseEnvelopeNeedMoreActions(t *testing.T) {
	env, ok := ParseEnvelope(map[string]interface{}{
		"type":   "need_more_actions",
		"reason": "need more data",
		"actions": []map[string]interface{}{
			{"name": "read_file", "params": map[string]interface{}{"path": "a.txt"}},
		},
	})
	require.True(t, ok)
	assert.Equal(t, ResultNeedMoreActions, env.Kind)
	require.Len(t, env.NextActions, 1)
	assert.Equal(t, "read_file", env.NextActions[0].Name)
}

func TestParseEnvelopePlainValueIsNotEnvelope(t *testing.T) {
	_, ok := ParseEnvelope("just a string")
	assert.False(t, ok)

	_, ok = ParseEnvelope(map[string]interface{}{"rows": 3})
	assert.False(t, ok)
}

func TestRetryableErrorRespectsFlag(t *testing.T) {
	assert.True(t, RetryableError(&Error{Retryable: true}))
	assert.False(t, RetryableError(&Error{Retryable: false}))
	assert.False(t, RetryableError(nil))
}
