package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	openai "github.com/sashabaranov/go-openai"
)

// Rater scores how sensational (clickbait, outrage, hype) a post reads.
type Rater interface {
	// RateSensationalism returns a factor in [0,1].
	RateSensationalism(ctx context.Context, content string) (float64, error)
}

// MissionWriter drafts mentoring missions in the tag-delimited format mission.Parse reads.
type MissionWriter interface {
	WriteMissions(ctx context.Context, tags []string, goal, language string, count int) (string, error)
}

// ErrNoRating is returned when the model reply carries no number.
var ErrNoRating = errors.New("no rating in reply")

// OpenAIClient implements Rater and MissionWriter using the Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	exec   failsafe.Executor[string]
}

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string        // optional
	MaxRetries int           // 0 means 2, negative disables retries
	RetryDelay time.Duration // first backoff step, 0 means 1s
}

func NewOpenAI(cfg Config) *OpenAIClient {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	model := cfg.Model
	if model == "" {
		panic("OpenAI model must be specified")
	}
	return &OpenAIClient{client: c, model: model, exec: failsafe.With(retryPolicy(cfg))}
}

func retryPolicy(cfg Config) retrypolicy.RetryPolicy[string] {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 2
	}
	if retries < 0 {
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool { return retryable(err) }).
		WithBackoff(delay, 20*delay).
		WithJitterFactor(0.1).
		WithMaxRetries(retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[string]) {
			slog.Warn("openai: retrying", "attempt", e.Attempts(), "error", e.LastError())
		}).
		Build()
}

// retryable reports rate limits and server side failures.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func (o *OpenAIClient) RateSensationalism(ctx context.Context, content string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, nil
	}
	if len([]rune(content)) > 2000 {
		content = string([]rune(content)[:2000])
	}

	sys := `
		You rate social posts written by developers for how sensational they are:
		clickbait, outrage, humblebragging, exaggerated claims or cringe self-promotion.
		Reply with a single number between 0 and 1, where 0 is calm and factual
		and 1 is pure sensationalism. Do not explain.
		`
	out, err := o.create(ctx, sys, content, 0.1)
	if err != nil {
		slog.Error("openai: rate sensationalism error", "err", err)
		return 0, err
	}
	return ParseFactor(out)
}

func (o *OpenAIClient) WriteMissions(ctx context.Context, tags []string, goal, language string, count int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	if count <= 0 {
		count = 3
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "grow as a developer"
	}

	sys := fmt.Sprintf(`
		You are a pragmatic mentor for software developers. Write in %s.
		Propose exactly %d concrete missions the developer can finish in a week or less.
		Use this format for every mission and nothing else:
		[MISSION]
		[TITLE]short title[/TITLE]
		[DESCRIPTION]two or three sentences[/DESCRIPTION]
		[DIFFICULTY]easy|medium|hard[/DIFFICULTY]
		[XP]a number between 50 and 300[/XP]
		[TAGS]comma separated skills[/TAGS]
		[/MISSION]
		`, langOrDefault(language), count)
	user := fmt.Sprintf("Interests: %s\nGoal: %s", strings.Join(tags, ", "), goal)
	out, err := o.create(ctx, sys, user, 0.7)
	if err != nil {
		slog.Error("openai: write missions error", "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (o *OpenAIClient) create(ctx context.Context, system, user string, temperature float32) (string, error) {
	// Default timeout guard, if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	}
	return o.exec.WithContext(ctx).Get(func() (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}

var number = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// ParseFactor reads the first number in a model reply as a factor in [0,1].
// Percentages and scores out of ten are rescaled.
func ParseFactor(s string) (float64, error) {
	loc := number.FindStringIndex(s)
	if loc == nil {
		return 0, fmt.Errorf("%w: %q", ErrNoRating, s)
	}
	v, err := strconv.ParseFloat(s[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoRating, s)
	}
	rest := strings.TrimSpace(s[loc[1]:])
	switch {
	case strings.HasPrefix(rest, "%"):
		v /= 100
	case strings.HasPrefix(rest, "/10") && !strings.HasPrefix(rest, "/100"):
		v /= 10
	case strings.HasPrefix(rest, "/100"):
		v /= 100
	case v > 1 && v <= 10:
		v /= 10
	case v > 10:
		v /= 100
	}
	return math.Min(1, math.Max(0, v)), nil
}

func langOrDefault(lang string) string {
	l := strings.TrimSpace(lang)
	if l == "" {
		return "English"
	}
	return l
}
