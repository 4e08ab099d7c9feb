package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"

	"github.com/ayush6624/go-chatgpt"
)

// OracleRequest is one role-specific call to the reasoning oracle. Context is
// the structured input, already serialized.
type OracleRequest struct {
	Contract    string
	Instruction string
	Context     string
}

type OracleRepository interface {
	// Complete returns the raw text of the oracle's judgment. Parsing is the
	// caller's job.
	Complete(ctx context.Context, req OracleRequest) (string, error)
}

type OracleError struct {
	Contract  string
	Attempts  int
	Retryable bool
	Err       error
}

func (e OracleError) Error() string {
	return fmt.Sprintf("oracle %s call failed after %d attempt(s): %v", e.Contract, e.Attempts, e.Err)
}

func (e OracleError) Unwrap() error {
	return e.Err
}

var errEmptyCompletion = errors.New("oracle returned no choices")

type OracleConfig struct {
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type oracleRepositoryHandler struct {
	GptClient *chatgpt.Client
	Config    OracleConfig
	Metrics   *metrics.Recorder

	send  func(ctx context.Context, req *chatgpt.ChatCompletionRequest) (*chatgpt.ChatResponse, error)
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOracleRepository(apiKey string, cfg OracleConfig, recorder *metrics.Recorder) (OracleRepository, error) {
	client, err := chatgpt.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to construct gpt client: %w", err)
	}

	return oracleRepositoryHandler{
		GptClient: client,
		Config:    cfg,
		Metrics:   recorder,
		send:      client.Send,
		sleep:     sleepCtx,
	}, nil
}

func (h oracleRepositoryHandler) Complete(ctx context.Context, req OracleRequest) (string, error) {
	log := logger.FromContext(ctx)
	chatReq := &chatgpt.ChatCompletionRequest{
		Model: chatgpt.ChatGPTModel(h.Config.Model),
		Messages: []chatgpt.ChatMessage{
			{
				Role:    chatgpt.ChatGPTModelRoleSystem,
				Content: req.Instruction,
			},
			{
				Role:    chatgpt.ChatGPTModelRoleUser,
				Content: req.Context,
			},
		},
		Temperature: 0.2,
	}

	var lastErr error
	attempts := 0
	for attempts <= h.Config.MaxRetries {
		if attempts > 0 {
			backoff := 250*time.Millisecond + time.Duration(rand.Int63n(int64(500*time.Millisecond)))
			log.Warnw("retrying oracle call", "contract", req.Contract, "backoff", backoff, "error", lastErr)
			if err := h.sleep(ctx, backoff); err != nil {
				break
			}
		}
		attempts++

		content, err := h.completeOnce(ctx, req.Contract, chatReq)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(ctx, err) {
			break
		}
	}

	return "", OracleError{
		Contract:  req.Contract,
		Attempts:  attempts,
		Retryable: isRetryable(ctx, lastErr),
		Err:       lastErr,
	}
}

func (h oracleRepositoryHandler) completeOnce(ctx context.Context, contract string, chatReq *chatgpt.ChatCompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.Config.Timeout)
	defer cancel()

	done := h.Metrics.OracleStarted()
	defer done()

	start := time.Now()
	res, err := h.send(callCtx, chatReq)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		h.Metrics.RecordOracleCall(contract, "error", elapsed)
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		h.Metrics.RecordOracleCall(contract, "empty", elapsed)
		return "", errEmptyCompletion
	}
	h.Metrics.RecordOracleCall(contract, "ok", elapsed)

	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}

// isRetryable is true for transport faults and per-call timeouts, as long as
// the caller's own context is still alive.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, errEmptyCompletion)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
