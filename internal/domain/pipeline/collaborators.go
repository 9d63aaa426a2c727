package pipeline

import "context"

// LLMRouter routes prompts to a model and generates responses.
type LLMRouter interface {
	Route(ctx context.Context, prompt string) (*RouteResult, error)
	Generate(ctx context.Context, params GenerateParams) (*GenerationResult, error)
	// GenerateStream returns a finite, in-order stream of text chunks.
	// The stream is not restartable; callers must Close it.
	GenerateStream(ctx context.Context, params GenerateParams) (TokenStream, error)
}

// TokenStream yields generation chunks until io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Retriever fetches knowledge base context for a prompt.
type Retriever interface {
	Retrieve(ctx context.Context, prompt string, intent RouteResult) (*RetrievalResult, error)
}

// AgentRuntime executes tool-using tasks (appointments, refills, searches).
type AgentRuntime interface {
	Run(ctx context.Context, prompt string, patientID *int) (*AgentResult, error)
}

// SafetyValidator checks generated text before it reaches the user.
type SafetyValidator interface {
	Validate(ctx context.Context, text string) (*ValidationResult, error)
}

// TelemetryEmitter accepts step telemetry. Implementations must not block
// the caller and must swallow delivery failures.
type TelemetryEmitter interface {
	EmitStep(event StepEvent)
}
