package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/azfoundry/foundry-go/sdk/embeddings"
)

func newEmbedCmd(a *app) *cobra.Command {
	var (
		model      string
		dimensions int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Generate embeddings for one or more texts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := embeddings.NewClient(a.client)

			started := time.Now()
			resp, err := client.Create(cmd.Context(), embeddings.Request{
				Model:      model,
				Input:      embeddings.Input(args),
				Dimensions: dimensions,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp.Data); err != nil {
					return err
				}
			} else {
				for _, emb := range resp.Data {
					fmt.Fprintf(cmd.OutOrStdout(), "input %d: %d dimensions\n", emb.Index, len(emb.Embedding))
				}
			}

			a.recordUsage(cmd, "embeddings", resp.Model, &resp.Usage, resp.Attempts, time.Since(started))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "text-embedding-3-small", "embedding model deployment")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "output dimensions (0 = model default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw vectors as JSON")

	return cmd
}
