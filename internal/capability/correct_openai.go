package capability

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"asr_server/internal/logger"
)

const correctSystemPrompt = "You correct speech-to-text transcripts: fix homophones, " +
	"remove filler words, and restore punctuation. Return only the corrected text, " +
	"with no commentary."

// OpenAICorrector applies LLM-based text correction against an
// OpenAI-compatible chat completion endpoint (a local inference server by
// default). Connection/availability failures degrade gracefully: the
// caller always gets back usable segments, never a pipeline failure.
type OpenAICorrector struct {
	client  oai.Client
	model   string
	timeout time.Duration

	// failing tracks whether the last attempt failed, so the "service is
	// degraded" warning logs once per failure streak rather than once per
	// buffer (supplemented feature: graceful degradation logging).
	failing atomic.Bool
}

// NewOpenAICorrector builds a Corrector pointed at endpoint (an
// OpenAI-compatible base URL, e.g. a local Ollama/vLLM server).
func NewOpenAICorrector(endpoint, model string, timeout time.Duration) *OpenAICorrector {
	client := oai.NewClient(
		option.WithBaseURL(endpoint),
		option.WithAPIKey("unused"),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &OpenAICorrector{client: client, model: model, timeout: timeout}
}

// Correct sends text to the configured chat-completion endpoint. On any
// failure — refused connection, timeout, non-2xx — it returns the input
// text and an unchanged copy of the segments, logging a warning exactly
// once per failure streak. The returned segments carry no marker that
// tells an uncorrected result apart from a corrected one.
func (c *OpenAICorrector) Correct(text string, segments []Segment) (string, []Segment, error) {
	if strings.TrimSpace(text) == "" {
		return text, segments, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(correctSystemPrompt),
			oai.UserMessage(text),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil || len(resp.Choices) == 0 {
		if c.failing.CompareAndSwap(false, true) {
			logger.Warn("correction_service_unavailable_degrading",
				"error", err,
				"note", "will resume automatically once the correction endpoint is reachable again")
		}
		return text, uncorrected(segments), nil
	}

	c.failing.Store(false)

	corrected := resp.Choices[0].Message.Content
	if strings.TrimSpace(corrected) == "" {
		return text, uncorrected(segments), nil
	}

	return corrected, uncorrected(segments), nil
}

func uncorrected(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}
