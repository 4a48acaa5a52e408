package driving

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// FeedbackService produces evidence-grounded feedback on learner input.
type FeedbackService interface {
	// Generate gathers literature and expert knowledge, composes a prompt and
	// returns the model's feedback with provenance.
	Generate(ctx context.Context, req domain.FeedbackRequest) (*domain.FeedbackResponse, error)
}
