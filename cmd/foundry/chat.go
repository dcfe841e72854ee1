package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/azfoundry/foundry-go/sdk/chat"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		model     string
		system    string
		stream    bool
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send a chat completion request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := chat.NewClient(a.client)

			req := chat.Request{
				Model:     model,
				MaxTokens: maxTokens,
			}
			if system != "" {
				req.Messages = append(req.Messages, chat.System(system))
			}
			req.Messages = append(req.Messages, chat.User(strings.Join(args, " ")))

			started := time.Now()
			var resp *chat.Response
			var err error
			if stream {
				resp, err = streamChat(cmd, client, req)
			} else {
				resp, err = client.Create(cmd.Context(), req)
				if err == nil {
					for _, choice := range resp.Choices {
						fmt.Fprintln(cmd.OutOrStdout(), choice.Message.Content)
					}
				}
			}
			if err != nil {
				return err
			}

			a.recordUsage(cmd, "chat", resp.Model, resp.Usage, resp.Attempts, time.Since(started))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4o", "model deployment to use")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system prompt")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the response as it is generated")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "cap on generated tokens (0 = server default)")

	return cmd
}

// streamChat prints delta content as it arrives and returns the
// assembled response for usage accounting.
func streamChat(cmd *cobra.Command, client *chat.Client, req chat.Request) (*chat.Response, error) {
	s, err := client.CreateStream(cmd.Context(), req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	resp := &chat.Response{Attempts: s.Attempts()}
	var content strings.Builder
	for s.Next() {
		chunk := s.Current()
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.Usage != nil {
			resp.Usage = chunk.Usage
		}
		for _, choice := range chunk.Choices {
			fmt.Fprint(cmd.OutOrStdout(), choice.Delta.Content)
			content.WriteString(choice.Delta.Content)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if err := s.Err(); err != nil {
		return nil, err
	}
	resp.Choices = []chat.Choice{{Message: chat.Message{Role: chat.RoleAssistant, Content: content.String()}}}
	return resp, nil
}
