package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/policy"
)

const prompt = "User:> "

// session is an interactive chat. It keeps the history on the client side
// and sends it whole with every request.
type session struct {
	client       *client
	capabilities []string
	history      []api.RawTurn
	in           *bufio.Scanner
	out          io.Writer
}

func newSession(c *client, capabilities []string, in io.Reader, out io.Writer) *session {
	return &session{
		client:       c,
		capabilities: capabilities,
		in:           bufio.NewScanner(in),
		out:          out,
	}
}

// run reads lines until "exit", end of input or ctx is done. Failed
// requests are reported and leave the history unchanged.
func (s *session) run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Welcome to the chat bot!")
	fmt.Fprintln(s.out, "  Type 'exit' to exit, 'reset' to start over.")

	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(s.out, prompt)
		if !s.in.Scan() {
			break
		}

		line := strings.TrimSpace(s.in.Text())
		switch line {
		case "":
			continue
		case "exit":
			fmt.Fprintln(s.out, "\nExiting chat...")
			return nil
		case "reset":
			s.history = nil
			fmt.Fprintln(s.out, "Conversation cleared.")
			continue
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}

	fmt.Fprintln(s.out, "\nExiting chat...")
	return s.in.Err()
}

func (s *session) send(ctx context.Context, text string) error {
	turns := append(s.history[:len(s.history):len(s.history)], api.RawTurn{Role: string(api.RoleUser), Content: text})

	resp, err := s.client.chat(ctx, &api.ChatRequest{
		Messages:     turns,
		Capabilities: s.capabilities,
		ReturnScope:  policy.NewTurnsOnly.String(),
	})
	if err != nil {
		return err
	}

	for _, t := range resp.Messages {
		turns = append(turns, api.RawTurn{Role: string(t.Role), Content: t.Content})
		if t.Role == api.RoleAssistant {
			fmt.Fprintf(s.out, "Assistant:> %s\n", t.Content)
		}
	}
	s.history = turns
	return nil
}
