package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptFeedbackPersona is the educator persona that opens every feedback prompt.
	// This prompt has no format placeholders.
	PromptFeedbackPersona = "feedback_persona"

	// PromptAntiFabrication forbids citing anything not supplied in the prompt.
	// This prompt has no format placeholders.
	PromptAntiFabrication = "anti_fabrication"

	// PromptNoEvidence tells the model to disclose that no literature was found.
	// This prompt has no format placeholders.
	PromptNoEvidence = "no_evidence"

	// PromptFeedbackFormat describes the expected response structure.
	// The template may contain PlaceholderDifficulty.
	PromptFeedbackFormat = "feedback_format"

	// PromptMetadataExtraction asks for strict JSON bibliographic metadata.
	// The template may contain PlaceholderFilename and PlaceholderText.
	PromptMetadataExtraction = "metadata_extraction"
)

// Named placeholders substituted into prompt templates. A template that
// omits one simply does not receive that value.
const (
	PlaceholderDifficulty = "{{difficulty}}"
	PlaceholderFilename   = "{{filename}}"
	PlaceholderText       = "{{text}}"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
