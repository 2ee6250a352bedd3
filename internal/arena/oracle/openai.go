package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// OpenAI is an oracle backed by an OpenAI-compatible chat completion API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an oracle client for the given model. baseURL may be
// empty to use the default endpoint, or point at any compatible server.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// wireDecision is the JSON shape the model is instructed to return.
type wireDecision struct {
	Reasoning string `json:"reasoning"`
	Statement string `json:"statement"`
	TargetID  string `json:"target_id"`
	None      bool   `json:"none"`
}

// Decide solicits one decision from the model.
func (o *OpenAI) Decide(ctx context.Context, req Request) (Decision, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req)),
			openai.UserMessage(userPrompt(req)),
		},
	})
	if err != nil {
		return Decision{}, apperrors.Wrap(apperrors.CodeOracleUnavailable, "chat completion failed", err)
	}
	if len(completion.Choices) == 0 {
		return Decision{}, apperrors.New(apperrors.CodeOracleUnavailable, "chat completion returned no choices")
	}
	return parseDecision(completion.Choices[0].Message.Content)
}

func parseDecision(content string) (Decision, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var wire wireDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &wire); err != nil {
		return Decision{}, apperrors.Wrap(apperrors.CodeOracleDecisionInvalid, "decision is not valid JSON", err)
	}
	return Decision{
		Reasoning: wire.Reasoning,
		Statement: wire.Statement,
		TargetID:  wire.TargetID,
		None:      wire.None,
	}, nil
}

func systemPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in a social deduction game of mafia.\n", req.Player.Name)
	b.WriteString("Respond with a single JSON object and nothing else: ")
	b.WriteString(`{"reasoning": "...", "statement": "...", "target_id": "...", "none": false}`)
	b.WriteString("\nreasoning is your private thinking. statement is what you say out loud, if anything.")
	if req.AllowNone {
		b.WriteString("\nSet none to true to decline choosing a target.")
	}
	return b.String()
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d, round %d, phase %s.\n", req.Day, req.Round, req.Phase)
	fmt.Fprintf(&b, "Decision required: %s.\n", capacityInstruction(req.Capacity))
	if len(req.Candidates) > 0 {
		b.WriteString("Legal targets:\n")
		for _, candidate := range req.Candidates {
			fmt.Fprintf(&b, "- %s (id: %s)\n", candidate.Name, candidate.ID)
		}
	}
	if len(req.Context) > 0 {
		b.WriteString("What you know:\n")
		for _, line := range req.Context {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func capacityInstruction(c Capacity) string {
	switch c {
	case CapacityMafiaChat:
		return "speak to your fellow mafia about tonight's kill (statement only)"
	case CapacityKillProposal:
		return "propose tonight's kill target, or none for no kill"
	case CapacityProtect:
		return "choose one player to protect tonight"
	case CapacityInvestigate:
		return "choose one player to investigate tonight"
	case CapacityShoot:
		return "fire your single vigilante shot, or hold"
	case CapacityStatement:
		return "make a public statement to the town (statement only)"
	case CapacityVote:
		return "vote to eliminate one player, or abstain"
	default:
		return string(c)
	}
}
