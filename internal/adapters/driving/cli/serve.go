package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the feedback and retrieval endpoints over HTTP.

Endpoints:
  GET  /healthz
  POST /api/v1/feedback
  POST /api/v1/retrieve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := httpapi.NewServer(&httpapi.Ports{
		Feedback:  feedbackService,
		Retrieval: retrievalService,
		Ranker:    citationRanker,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", serveAddr)
	return server.Run(commandContext(cmd), serveAddr)
}
