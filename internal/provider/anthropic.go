// File: internal/provider/anthropic.go
package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Anthropic drives the Claude computer-use tool. Its tool calls carry
// viewport pixel coordinates, so the tool definition advertises the
// session's exact display size.
type Anthropic struct {
	client  anthropic.Client
	cfg     config.ProviderConfig
	vp      schemas.Viewport
	logger  *zap.Logger
	limiter *rate.Limiter

	messages []anthropic.BetaMessageParam
	// pendingToolID is the tool_use awaiting its tool_result on the
	// next turn.
	pendingToolID string
}

// NewAnthropic connects to the Anthropic API.
func NewAnthropic(cfg config.ProviderConfig, vp schemas.Viewport, logger *zap.Logger) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	return &Anthropic{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:     cfg,
		vp:      vp,
		logger:  logger.Named("anthropic"),
		limiter: newLimiter(cfg.RequestsPerMinute),
	}, nil
}

func (a *Anthropic) Name() string { return protocol.ProviderAnthropic }

// NextInstruction runs one model turn. The first call opens the
// conversation with the task prompt and screenshot; subsequent calls
// answer the pending tool_use with a tool_result carrying the action
// outcome and the fresh screenshot.
func (a *Anthropic) NextInstruction(ctx context.Context, task *schemas.TaskContext, obs schemas.Observation) schemas.ProviderVerdict {
	if err := a.limiter.Wait(ctx); err != nil {
		return transportFailure("anthropic.limiter", err)
	}

	a.messages = append(a.messages, a.userMessage(task, obs))

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	resp, err := a.client.Beta.Messages.New(callCtx, anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Betas:     []anthropic.AnthropicBeta{anthropic.AnthropicBetaComputerUse2025_01_24},
		System: []anthropic.BetaTextBlockParam{
			{Text: taskPrompt(task)},
		},
		Tools: []anthropic.BetaToolUnionParam{{
			OfComputerUseTool20250124: &anthropic.BetaToolComputerUse20250124Param{
				DisplayWidthPx:  int64(a.vp.Width),
				DisplayHeightPx: int64(a.vp.Height),
			},
		}},
		Messages: a.messages,
	})
	if err != nil {
		// Unwind the user turn so a retry does not double-append.
		a.messages = a.messages[:len(a.messages)-1]
		a.logger.Warn("Model call failed.", zap.Error(err))
		return transportFailure("anthropic.messages", err)
	}

	return a.consumeResponse(resp)
}

// consumeResponse appends the assistant turn and extracts the verdict.
// The caller has already appended the user turn that elicited resp.
func (a *Anthropic) consumeResponse(resp *anthropic.BetaMessage) schemas.ProviderVerdict {
	a.messages = append(a.messages, resp.ToParam())

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if text != "" {
				text += "\n"
			}
			text += block.Text
		case "tool_use":
			tu := block.AsToolUse()
			args, err := toolInputArgs(tu.Input)
			if err != nil {
				// Unwind the assistant turn and the user turn that
				// elicited it: an undecodable tool_use must not stay
				// in history, since no tool_result will ever answer
				// it and the next call would be rejected.
				a.messages = a.messages[:len(a.messages)-2]
				a.logger.Warn("Tool input did not decode.", zap.Error(err))
				return transportFailure("anthropic.tool_input", err)
			}
			a.pendingToolID = tu.ID
			a.logger.Debug("Instruction received.", zap.String("action", stringValue(args, "action")))
			return schemas.ContinueVerdict(&schemas.RawInstruction{
				Provider: protocol.ProviderAnthropic,
				Name:     tu.Name,
				Args:     args,
			})
		}
	}

	// No tool call: the model considers the goal achieved.
	a.pendingToolID = ""
	return schemas.DoneVerdict(text)
}

// userMessage builds the user turn: the opening prompt lives in the
// system block, so the first message is just the screenshot; later
// turns answer the pending tool call.
func (a *Anthropic) userMessage(task *schemas.TaskContext, obs schemas.Observation) anthropic.BetaMessageParam {
	b64 := base64.StdEncoding.EncodeToString(obs.Screenshot)

	if a.pendingToolID == "" {
		return anthropic.NewBetaUserMessage(
			anthropic.NewBetaTextBlock("Here is the current page. Begin."),
			betaImageBlock(b64),
		)
	}

	result := anthropic.BetaContentBlockParamUnion{
		OfToolResult: &anthropic.BetaToolResultBlockParam{
			ToolUseID: a.pendingToolID,
			IsError:   anthropic.Bool(!obs.LastActionOK),
			Content: []anthropic.BetaToolResultBlockParamContentUnion{
				{OfText: &anthropic.BetaTextBlockParam{Text: resultNote(obs)}},
				{OfImage: &anthropic.BetaImageBlockParam{
					Source: anthropic.BetaImageBlockParamSourceUnion{
						OfBase64: &anthropic.BetaBase64ImageSourceParam{
							MediaType: anthropic.BetaBase64ImageSourceMediaTypeImagePNG,
							Data:      b64,
						},
					},
				}},
			},
		},
	}
	return anthropic.NewBetaUserMessage(result)
}

func betaImageBlock(b64 string) anthropic.BetaContentBlockParamUnion {
	return anthropic.BetaContentBlockParamUnion{
		OfImage: &anthropic.BetaImageBlockParam{
			Source: anthropic.BetaImageBlockParamSourceUnion{
				OfBase64: &anthropic.BetaBase64ImageSourceParam{
					MediaType: anthropic.BetaBase64ImageSourceMediaTypeImagePNG,
					Data:      b64,
				},
			},
		},
	}
}

// toolInputArgs flattens the SDK's tool input into a plain map without
// depending on its concrete type.
func toolInputArgs(input any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding tool input: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decoding tool input: %w", err)
	}
	return args, nil
}

func stringValue(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
