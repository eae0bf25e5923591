package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inferencegate/gateway/internal/config"
	"github.com/inferencegate/gateway/internal/gwerrors"
	"github.com/inferencegate/gateway/internal/orchestrator"
)

func mustMarshalJSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// healthSentinel marks a user turn injected by a health-check probe rather
// than a genuine user query; the vector-search query-text walk trims it and
// stops collecting further turns once it is seen.
const healthSentinel = "<server-health>"

// KeywordQueryText returns the raw text of the trailing user message, the
// query used verbatim for keyword-search backends.
func KeywordQueryText(req *orchestrator.Request) (string, error) {
	idx := req.LastUserMessage()
	if idx < 0 {
		return "", gwerrors.New(gwerrors.BadRequest, "the last message in the request is not a user message")
	}
	text, ok := req.Messages[idx].TextContent()
	if !ok {
		return "", gwerrors.New(gwerrors.BadRequest, "the last message in the request is not a text-only user message")
	}
	return text, nil
}

// VectorQueryText walks messages in reverse, collecting up to contextWindow
// user turns, stopping early (after trimming the sentinel and including that
// turn) if a turn ends with the health-check sentinel. Collected turns are
// reversed back into chronological order and newline-joined.
func VectorQueryText(req *orchestrator.Request, contextWindow int) (string, error) {
	if len(req.Messages) == 0 {
		return "", gwerrors.New(gwerrors.BadRequest, "found empty chat messages")
	}

	var collected []string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != "user" {
			continue
		}
		text, ok := msg.TextContent()
		if !ok {
			continue
		}

		if strings.HasSuffix(text, healthSentinel) {
			collected = append(collected, strings.TrimSuffix(text, healthSentinel))
			break
		}
		collected = append(collected, text)

		if len(collected) == contextWindow {
			break
		}
	}

	if len(collected) == 0 {
		return "", gwerrors.New(gwerrors.BadRequest, "no user messages found")
	}

	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, "\n"), nil
}

// MergeContext splices retrieved context into the outgoing request per the
// configured policy. An empty context is a caller error — RAG must not be
// invoked with nothing to merge.
// A SystemMessage policy silently downgrades to LastUserMessage when
// hasSystemPrompt is false. Otherwise the context is appended to a leading
// system message, or a new system message carrying it is inserted first when
// the request does not start with one.
func MergeContext(req *orchestrator.Request, context string, policy config.RAGPolicy, ragPrompt string, hasSystemPrompt bool) error {
	if len(req.Messages) == 0 {
		return gwerrors.New(gwerrors.BadRequest, "found empty messages in the chat request")
	}
	context = strings.TrimRight(context, " \t\n\r")
	if context == "" {
		return gwerrors.New(gwerrors.BadRequest, "no context provided")
	}

	if policy == config.PolicySystemMessage && !hasSystemPrompt {
		policy = config.PolicyLastUserMessage
	}

	processedPrompt := strings.ReplaceAll(ragPrompt, `\n`, "\n")

	switch policy {
	case config.PolicySystemMessage:
		return mergeSystemMessage(req, context, processedPrompt)
	default:
		return mergeLastUserMessage(req, context, processedPrompt)
	}
}

func mergeSystemMessage(req *orchestrator.Request, context, ragPrompt string) error {
	first := &req.Messages[0]
	if first.Role == "system" {
		existing, _ := first.TextContent()
		var content string
		if ragPrompt != "" {
			content = fmt.Sprintf("%s\n%s\n%s", strings.TrimSpace(existing), ragPrompt, context)
		} else {
			content = fmt.Sprintf("%s\n%s", strings.TrimSpace(existing), context)
		}
		first.Content = mustMarshalJSONString(content)
		return nil
	}

	var content string
	if ragPrompt != "" {
		content = fmt.Sprintf("%s\n%s", ragPrompt, context)
	} else {
		content = context
	}
	req.Messages = append([]orchestrator.Message{{Role: "system", Content: mustMarshalJSONString(content)}}, req.Messages...)
	return nil
}

func mergeLastUserMessage(req *orchestrator.Request, context, ragPrompt string) error {
	last := len(req.Messages) - 1
	if req.Messages[last].Role != "user" {
		return gwerrors.New(gwerrors.BadRequest, "the last message in the chat request should be a user message")
	}
	userText, ok := req.Messages[last].TextContent()
	if !ok {
		return gwerrors.New(gwerrors.BadRequest, "the last message in the chat request should be a text-only user message")
	}

	var content string
	if ragPrompt != "" {
		content = fmt.Sprintf("%s\n%s\n\nAnswer the question based on the pieces of context above. The question is:\n%s", ragPrompt, context, strings.TrimSpace(userText))
	} else {
		content = fmt.Sprintf("%s\n\nAnswer the question based on the pieces of context above. The question is:\n%s", context, strings.TrimSpace(userText))
	}
	req.Messages[last].Content = mustMarshalJSONString(content)
	return nil
}
