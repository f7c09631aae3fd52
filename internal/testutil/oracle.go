package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Reply is one scripted oracle response.
type Reply struct {
	Text string
	Err  error
	// Block waits for the call's context to end.
	Block bool
}

// ScriptedModel is a chat model that answers with Replies in order. The
// last reply repeats once the script is exhausted.
type ScriptedModel struct {
	Replies []Reply

	mu      sync.Mutex
	prompts [][]*schema.Message
}

// Generate implements model.BaseChatModel.
func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	n := len(m.prompts)
	m.prompts = append(m.prompts, input)
	m.mu.Unlock()

	if len(m.Replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	r := m.Replies[min(n, len(m.Replies)-1)]
	if r.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return schema.AssistantMessage(r.Text, nil), nil
}

// Stream implements model.BaseChatModel. Streaming is not scripted.
func (m *ScriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// Calls returns the number of Generate calls.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompt returns the user message of the i-th call.
func (m *ScriptedModel) Prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.prompts) {
		return ""
	}
	msgs := m.prompts[i]
	for j := len(msgs) - 1; j >= 0; j-- {
		if msgs[j].Role == schema.User {
			return msgs[j].Content
		}
	}
	return ""
}
