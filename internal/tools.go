package internal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrTooManyTries is returned once a prompt has rejected its last allowed answer.
var ErrTooManyTries = errors.New("too many tries")

// Validator accepts an answer or returns the text to show before asking again.
type Validator func(answer string) (ok bool, retry string)

type promptConfig struct {
	tries     int
	validator Validator
	delay     time.Duration
}

type PromptOpt func(*promptConfig)

func WithValidator(v Validator) PromptOpt {
	return func(cfg *promptConfig) {
		cfg.validator = v
	}
}

func WithMaxTries(i int) PromptOpt {
	return func(cfg *promptConfig) {
		cfg.tries = i
	}
}

// WithFailureDelay pauses after every rejected answer.
func WithFailureDelay(d time.Duration) PromptOpt {
	return func(cfg *promptConfig) {
		cfg.delay = d
	}
}

// Prompt writes prompt to w and reads one line from br, repeating until the
// validator accepts it. br must be the only reader of the underlying
// connection so buffered input is not lost between prompts. A final line
// without a newline is accepted.
func Prompt(ctx context.Context, br *bufio.Reader, w io.Writer, prompt string, opts ...PromptOpt) (string, error) {
	cfg := &promptConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	for tries := 1; ; tries++ {
		if _, err := io.WriteString(w, prompt); err != nil {
			return "", err
		}

		answer, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || answer == "") {
			return "", err
		}
		answer = strings.TrimRight(answer, "\r\n")

		if cfg.validator == nil {
			return answer, nil
		}
		ok, retry := cfg.validator(answer)
		if ok {
			return answer, nil
		}

		if _, err := io.WriteString(w, retry); err != nil {
			return "", err
		}
		if cfg.tries > 0 && tries >= cfg.tries {
			_, _ = io.WriteString(w, ErrTooManyTries.Error()+"\n")
			return "", ErrTooManyTries
		}
		if err := pause(ctx, cfg.delay); err != nil {
			return "", err
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
