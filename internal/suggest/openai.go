package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// responseSchema constrains the model output to the SuggestionResponse wire
// shape via structured outputs.
var responseSchema = func() any {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	return reflector.Reflect(&SuggestionResponse{})
}()

// OpenAIEngine generates suggestions with a chat completion constrained by a
// JSON schema. It runs entirely client-side against the OpenAI API, without
// the Taskie backend.
type OpenAIEngine struct {
	client openai.Client
	model  string
	logger *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewOpenAIEngine(apiKey, model string, logger *slog.Logger) *OpenAIEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIEngine{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

func (e *OpenAIEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *OpenAIEngine) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	now := e.now()
	if fe := ValidateRequest(req, now); fe.HasErrors() {
		return nil, requestError(fe)
	}

	systemPrompt := buildSystemPrompt(now)
	userPrompt := buildUserPrompt(req)

	e.logger.Debug("invoking OpenAI",
		"model", e.model,
		"system_prompt_len", len(systemPrompt),
		"user_prompt_len", len(userPrompt),
	)

	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "suggestion_response",
					Schema: responseSchema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, &api.NetworkError{Err: fmt.Errorf("calling OpenAI: %w", err), Retryable: true}
	}
	if len(completion.Choices) == 0 {
		return nil, &api.UnknownError{Body: "OpenAI returned no choices"}
	}

	raw := completion.Choices[0].Message.Content
	var resp SuggestionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parsing model output: %w", err)
	}

	// Models occasionally hallucinate out-of-bounds slots; drop them instead
	// of surfacing them to the user.
	resp.Slots = boundedSlots(resp.Slots, now, req)

	if err := resp.Normalize(); err != nil {
		return nil, fmt.Errorf("normalizing model output: %w", err)
	}
	if !resp.Empty() {
		if errs := ValidateResponse(&resp, now); len(errs) > 0 {
			e.logger.Error("model output failed validation", "errors", errs)
			return nil, fmt.Errorf("model output failed validation: %w", errs[0])
		}
	}

	e.logger.Debug("OpenAI suggestion response",
		"slots", len(resp.Slots),
		"fallback", resp.FallbackAutoMode.Enabled,
	)
	return &resp, nil
}

// boundedSlots keeps only parseable slots that start after now and finish by
// the deadline.
func boundedSlots(slots []SuggestedSlot, now time.Time, req SuggestionRequest) []SuggestedSlot {
	var out []SuggestedSlot
	for _, slot := range slots {
		start, err := time.Parse(time.RFC3339, slot.SuggestedStartAt)
		if err != nil {
			continue
		}
		if !start.After(now) {
			continue
		}
		if start.Add(time.Duration(slot.PlannedMinutes) * time.Minute).After(req.Deadline) {
			continue
		}
		slot.StartAt = start
		out = append(out, slot)
	}
	return out
}

func buildSystemPrompt(now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are a scheduling assistant. Given a task and a deadline, ")
	sb.WriteString("propose between one and three candidate time slots for working on it.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- suggested_start_at must be RFC3339 with an explicit timezone offset\n")
	sb.WriteString("- every slot must start after the current time and finish before the deadline\n")
	sb.WriteString("- planned_minutes must equal the requested duration\n")
	sb.WriteString("- confidence is a number in [0,1]; order slots from most to least confident\n")
	sb.WriteString("- reason is one short sentence explaining why the slot fits\n")
	sb.WriteString("- when no slot fits, return an empty suggested_slots array and set fallback_auto_mode.enabled to true\n\n")
	fmt.Fprintf(&sb, "Current time: %s\n", now.Format(time.RFC3339))
	return sb.String()
}

func buildUserPrompt(req SuggestionRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&sb, "Details: %s\n", req.Description)
	}
	fmt.Fprintf(&sb, "Duration: %d minutes\n", req.DurationMinutes)
	fmt.Fprintf(&sb, "Deadline: %s\n", req.Deadline.Format(time.RFC3339))
	if w := req.PreferredWindow; w != nil {
		fmt.Fprintf(&sb, "Preferred window: %s to %s\n",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return sb.String()
}
