// internal/generator/textgen.go
//
// Generator backed by an OpenAI-compatible chat-completions endpoint.
//
// Every call sends a system prompt describing the expected JSON object and
// parses choices[0].message.content as that object. Transport errors, non-2xx
// statuses and schema violations all surface as ErrGenerationFailed.
//
// Authentication uses an oauth2 static token source so the API key travels as
// a bearer token on every request.

package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
)

// TextGenConfig configures the remote generator.
type TextGenConfig struct {
	URL     string        // full chat-completions URL
	Model   string        // model name sent with each request
	APIKey  string        // bearer token; empty disables auth
	Timeout time.Duration // per request; defaults to 20s
}

// TextGen talks to the remote text-generation service.
type TextGen struct {
	cfg    TextGenConfig
	client *http.Client
}

// NewTextGen builds a TextGen. ctx scopes the underlying oauth2 client.
func NewTextGen(ctx context.Context, cfg TextGenConfig) *TextGen {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	client := &http.Client{}
	if cfg.APIKey != "" {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.APIKey,
			TokenType:   "Bearer",
		}))
	}
	client.Timeout = cfg.Timeout
	return &TextGen{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one prompt and decodes the JSON answer into out.
func (t *TextGen) complete(ctx context.Context, system, user string, out any) error {
	body, err := json.Marshal(chatRequest{
		Model: t.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.9,
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrGenerationFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGenerationFailed, err)
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil || len(cr.Choices) == 0 {
		return fmt.Errorf("%w: malformed completion", ErrGenerationFailed)
	}
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), out); err != nil {
		return fmt.Errorf("%w: invalid schema: %v", ErrGenerationFailed, err)
	}
	return nil
}

func languageName(lang puzzle.Language) string {
	if lang == puzzle.EN {
		return "English"
	}
	return "French"
}

// GenerateChallenge asks the service for a new puzzle avoiding existing words.
func (t *TextGen) GenerateChallenge(ctx context.Context, existing []string, lang puzzle.Language) (puzzle.Challenge, error) {
	system := `You create word puzzles. Reply with a JSON object {"challenge": string, "description": string, "solutionWord": string, "hint": string}. ` +
		`solutionWord is a single common ` + languageName(lang) + ` word, uppercase, without spaces or accents, at least 5 letters. ` +
		`challenge is exactly 2 consecutive letters of solutionWord. description and hint are written in ` + languageName(lang) + `.`
	user := "Words already used (do not reuse): " + strings.Join(existing, ", ")

	var c puzzle.Challenge
	if err := t.complete(ctx, system, user, &c); err != nil {
		return puzzle.Challenge{}, err
	}
	return accept(c, existing)
}

// EvaluateRound asks the service to judge a word (or generate one when the
// input is empty). A provided SolutionWord is echoed back uppercased.
func (t *TextGen) EvaluateRound(ctx context.Context, req EvalRequest) (Evaluation, error) {
	system := `You judge a word game. Reply with a JSON object {"isValid": boolean, "feedback": string, "solutionWord": string, "hint": string}. ` +
		`The player must find a ` + languageName(req.Language) + ` word containing the given two letters and matching the description. ` +
		`If wordOrPhrase is empty, invent a fitting solutionWord and hint. solutionWord is one uppercase token.`
	user, err := json.Marshal(req)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var ev Evaluation
	if err := t.complete(ctx, system, string(user), &ev); err != nil {
		return Evaluation{}, err
	}
	if sol := strings.TrimSpace(req.SolutionWord); sol != "" {
		ev.SolutionWord = sol
	}
	fields := strings.Fields(ev.SolutionWord)
	if len(fields) == 0 {
		return Evaluation{}, fmt.Errorf("%w: empty solution word", ErrGenerationFailed)
	}
	ev.SolutionWord = strings.ToUpper(fields[0])
	return ev, nil
}

// CheckOriginality asks the service whether candidate differs from previous answers.
func (t *TextGen) CheckOriginality(ctx context.Context, candidate string, previous []string) (Originality, error) {
	if local := localOriginality(candidate, previous); !local.IsOriginal {
		return local, nil
	}
	system := `You rate originality in a word game. Reply with a JSON object {"isOriginal": boolean}. ` +
		`A candidate is original when it is not a repeat or trivial variant of the previous candidates.`
	user := fmt.Sprintf("candidate: %s\nprevious: %s", candidate, strings.Join(previous, ", "))

	var res struct {
		IsOriginal bool `json:"isOriginal"`
	}
	if err := t.complete(ctx, system, user, &res); err != nil {
		return Originality{}, err
	}
	if !res.IsOriginal {
		return Originality{}, nil
	}
	return localOriginality(candidate, nil), nil
}
