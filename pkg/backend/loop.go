package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/capability"
	"github.com/rhuss/palaver/pkg/conversation"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/observability"
	"github.com/rhuss/palaver/pkg/policy"
)

// Result is the outcome of one completion.
type Result struct {
	// Turns holds the turns selected by the policy's return scope: the new
	// assistant turns only, or the input conversation followed by them.
	Turns []api.Turn

	// Produced is the number of assistant turns the backend produced.
	Produced int

	Usage  api.Usage
	Rounds int
	Model  string
}

// Complete runs the autonomous invocation loop for conv under pol.
//
// Each round sends the conversation and, while capability calls are allowed
// and the round budget is not spent, the functions of the exposed
// capabilities. When the model asks for functions they are invoked and the
// results are fed back for the next round. Once pol.MaxRounds() rounds have
// run the functions are withheld, forcing a text answer.
//
// Unknown function names and capability failures are reported to the model,
// not to the caller. Cancelling ctx aborts the round-trip and every
// in-flight capability call; Complete then returns ctx's error.
func (h *Handle) Complete(ctx context.Context, conv *conversation.Context, pol policy.Policy) (*Result, error) {
	input := conv.Turns()
	msgs := MessagesFromTurns(input)
	maxRounds := pol.MaxRounds()
	provName := h.client.Name()

	var produced []api.Turn
	var usage api.Usage
	rounds := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := &Request{Model: h.model, Messages: msgs, MaxTokens: h.maxTokens}
		if pol.AllowAutonomousCalls && rounds < maxRounds {
			req.Tools = h.tools
		}

		reply, err := h.roundTrip(ctx, req, rounds)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%s: %w", provName, ctxErr)
			}
			return nil, fmt.Errorf("%s: %w", provName, err)
		}
		usage.Add(reply.Usage)

		if text := strings.TrimSpace(reply.Content); text != "" {
			produced = append(produced, api.Turn{Role: api.RoleAssistant, Content: text})
		}

		if len(reply.ToolCalls) == 0 {
			break
		}
		if len(req.Tools) == 0 {
			debug.Log("backend", "ignoring tool calls from a round without tools",
				"provider", provName, "calls", len(reply.ToolCalls))
			break
		}

		rounds++
		calls := assignCallIDs(reply.ToolCalls, rounds)
		msgs = append(msgs, Message{Role: RoleAssistant, Content: reply.Content, ToolCalls: calls})

		results, err := h.invokeAll(ctx, calls)
		if err != nil {
			return nil, err
		}
		for i, r := range results {
			msgs = append(msgs, Message{
				Role:       RoleTool,
				Content:    r.Output,
				ToolCallID: r.CallID,
				Name:       calls[i].Name,
			})
		}
	}

	res := &Result{
		Produced: len(produced),
		Usage:    usage,
		Rounds:   rounds,
		Model:    h.model,
	}
	if pol.ReturnScope == policy.FullHistory {
		res.Turns = append(input, produced...)
	} else {
		res.Turns = produced
	}
	return res, nil
}

func (h *Handle) roundTrip(ctx context.Context, req *Request, round int) (*Reply, error) {
	provName := h.client.Name()
	ctx, span := observability.Tracer().Start(ctx, "backend.round")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend.provider", provName),
		attribute.String("backend.model", h.model),
		attribute.Int("backend.round", round),
		attribute.Int("backend.messages", len(req.Messages)),
		attribute.Int("backend.tools", len(req.Tools)),
	)

	debug.Log("backend", "sending request",
		"provider", provName, "round", round, "messages", len(req.Messages), "tools", len(req.Tools))

	start := time.Now()
	reply, err := h.client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		observability.RecordBackendRequest(provName, h.model, "error", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if reply == nil {
		observability.RecordBackendRequest(provName, h.model, "error", elapsed, 0, 0)
		span.SetStatus(codes.Error, "nil reply")
		return &Reply{}, nil
	}

	observability.RecordBackendRequest(provName, h.model, "success", elapsed, reply.Usage.InputTokens, reply.Usage.OutputTokens)
	span.SetAttributes(
		attribute.Int("backend.tool_calls", len(reply.ToolCalls)),
		attribute.Int("backend.input_tokens", reply.Usage.InputTokens),
		attribute.Int("backend.output_tokens", reply.Usage.OutputTokens),
	)
	debug.Log("backend", "received reply",
		"provider", provName, "round", round, "tool_calls", len(reply.ToolCalls),
		"content_len", len(reply.Content), "finish_reason", reply.FinishReason)
	debug.Trace("backend", "reply content", "content", debug.Truncate(reply.Content, 2000))
	return reply, nil
}

// invokeAll runs calls concurrently and returns their results in call order.
// Only ctx cancellation is reported as an error.
func (h *Handle) invokeAll(ctx context.Context, calls []ToolCall) ([]*capability.Result, error) {
	results := make([]*capability.Result, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxParallel)
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = h.invokeOne(gctx, tc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Handle) invokeOne(ctx context.Context, tc ToolCall) *capability.Result {
	b, ok := h.bindings[tc.Name]
	if !ok {
		debug.Log("backend", "model called unknown function", "function", tc.Name, "call_id", tc.ID)
		return capability.ErrorResult(tc.ID, fmt.Sprintf("unknown function %q", tc.Name))
	}
	return capability.Invoke(ctx, b, capability.Call{ID: tc.ID, Function: tc.Name, Arguments: tc.Arguments})
}

// assignCallIDs fills in missing call ids. Some backends (Gemini) do not
// identify calls, but the loop pairs results with calls by id.
func assignCallIDs(calls []ToolCall, round int) []ToolCall {
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_%d_%d", round, i)
		}
		out[i] = tc
	}
	return out
}
