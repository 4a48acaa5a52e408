package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

var (
	feedbackScenario   string
	feedbackTitle      string
	feedbackContext    string
	feedbackObjectives []string
	feedbackDifficulty string
	feedbackJSON       bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback [learner input]",
	Short: "Generate evidence-grounded feedback on a learner answer",
	Long: `Retrieves literature and expert knowledge for the learner's answer and asks
the configured LLM chain for feedback. Citations in the output refer only to
retrieved sources; when nothing relevant is found the feedback says so.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVarP(&feedbackScenario, "scenario", "s", "", "scenario identifier (required)")
	feedbackCmd.Flags().StringVar(&feedbackTitle, "title", "", "scenario title")
	feedbackCmd.Flags().StringVar(&feedbackContext, "context", "", "scenario description")
	feedbackCmd.Flags().StringSliceVar(&feedbackObjectives, "objective", nil, "learning objective (repeatable)")
	feedbackCmd.Flags().StringVarP(&feedbackDifficulty, "difficulty", "d", "intermediate", "difficulty level")
	feedbackCmd.Flags().BoolVar(&feedbackJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	if err := requireService(feedbackService, "feedback"); err != nil {
		return err
	}
	if strings.TrimSpace(feedbackScenario) == "" {
		return errors.New("--scenario is required")
	}

	resp, err := feedbackService.Generate(commandContext(cmd), domain.FeedbackRequest{
		Scenario: domain.ScenarioContext{
			ScenarioID:  feedbackScenario,
			Title:       feedbackTitle,
			Description: feedbackContext,
			Objectives:  feedbackObjectives,
		},
		LearnerInput:    args[0],
		DifficultyLevel: feedbackDifficulty,
	})
	if err != nil {
		return fmt.Errorf("feedback failed: %w", err)
	}

	if feedbackJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(strings.TrimSpace(resp.FeedbackText))
	cmd.Println()
	cmd.Println("Sources")
	cmd.Println("-------")
	cmd.Printf("  Expert corrections: %d\n", resp.Sources.ExpertCorrectionsUsed)
	cmd.Printf("  Exemplars:          %d\n", resp.Sources.ExemplarsShown)
	cmd.Printf("  Literature:         %d (%s)\n", resp.Sources.LiteratureCitations, resp.EvidenceOutcome)
	for i, rc := range resp.Citations {
		cmd.Printf("  [%d] %s\n", i+1, rc.Result.Metadata.Citation())
	}
	if resp.Backend != "" {
		cmd.Printf("  Model: %s\n", resp.Backend)
	}
	return nil
}
