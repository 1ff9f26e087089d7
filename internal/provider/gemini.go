// File: internal/provider/gemini.go
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/protocol"
)

// Gemini drives the Gemini computer-use tool. Coordinates in its
// function calls are on the 0-1000 normalized grid; the protocol
// decoder translates them.
type Gemini struct {
	client  *genai.Client
	cfg     config.ProviderConfig
	vp      schemas.Viewport
	logger  *zap.Logger
	limiter *rate.Limiter

	// conversation is the full turn history sent with every request.
	conversation []*genai.Content
	// pendingCall is the function call awaiting its response part on
	// the next turn.
	pendingCall string
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, vp schemas.Viewport, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Gemini{
		client:  client,
		cfg:     cfg,
		vp:      vp,
		logger:  logger.Named("gemini"),
		limiter: newLimiter(cfg.RequestsPerMinute),
	}, nil
}

func (g *Gemini) Name() string { return protocol.ProviderGemini }

// NextInstruction runs one model turn. The first call opens the
// conversation with the task prompt; subsequent calls answer the
// pending function call with the action outcome and the fresh
// screenshot.
func (g *Gemini) NextInstruction(ctx context.Context, task *schemas.TaskContext, obs schemas.Observation) schemas.ProviderVerdict {
	if err := g.limiter.Wait(ctx); err != nil {
		return transportFailure("gemini.limiter", err)
	}

	g.conversation = append(g.conversation, g.userContent(task, obs))

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.cfg.Model, g.conversation, &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.cfg.MaxTokens),
		Tools: []*genai.Tool{{
			ComputerUse: &genai.ComputerUse{Environment: genai.EnvironmentBrowser},
		}},
	})
	if err != nil {
		// Unwind the user turn so a retry does not double-append.
		g.conversation = g.conversation[:len(g.conversation)-1]
		g.logger.Warn("Model call failed.", zap.Error(err))
		return transportFailure("gemini.generate", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		g.conversation = g.conversation[:len(g.conversation)-1]
		return transportFailure("gemini.generate", fmt.Errorf("empty response"))
	}

	content := resp.Candidates[0].Content
	call, text := firstFunctionCall(content)

	if call == nil {
		// No action requested: the model considers the goal achieved.
		g.conversation = append(g.conversation, content)
		g.pendingCall = ""
		return schemas.DoneVerdict(text)
	}

	// Keep only the answered call in history. The protocol requires a
	// response part for every recorded call, and we execute one action
	// per turn.
	g.conversation = append(g.conversation, &genai.Content{
		Role:  "model",
		Parts: []*genai.Part{{FunctionCall: call}},
	})
	g.pendingCall = call.Name

	g.logger.Debug("Instruction received.", zap.String("name", call.Name))
	return schemas.ContinueVerdict(&schemas.RawInstruction{
		Provider: protocol.ProviderGemini,
		Name:     call.Name,
		Args:     call.Args,
	})
}

// userContent builds the user turn: task prompt on the first call, a
// function response afterwards, always with the current screenshot.
func (g *Gemini) userContent(task *schemas.TaskContext, obs schemas.Observation) *genai.Content {
	screenshot := &genai.Part{InlineData: &genai.Blob{
		MIMEType: "image/png",
		Data:     obs.Screenshot,
	}}

	if g.pendingCall == "" {
		return &genai.Content{
			Role: "user",
			Parts: []*genai.Part{
				{Text: taskPrompt(task)},
				screenshot,
			},
		}
	}

	response := map[string]any{"url": obs.URL}
	if !obs.LastActionOK {
		response["error"] = resultNote(obs)
	}
	return &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{FunctionResponse: &genai.FunctionResponse{
				Name:     g.pendingCall,
				Response: response,
			}},
			screenshot,
		},
	}
}

// firstFunctionCall returns the first function call in content along
// with any accumulated text.
func firstFunctionCall(content *genai.Content) (*genai.FunctionCall, string) {
	var text string
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			return part.FunctionCall, text
		}
		if part.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += part.Text
		}
	}
	return nil, text
}
