// Package tokens estimates prompt sizes and enforces the input length limit.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// Counter counts tokens in plain text.
type Counter interface {
	CountText(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding. Gemini has no
// public tokenizer, so cl100k_base serves as a close approximation.
type TiktokenCounter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewTiktokenCounter creates a counter for encoding. An empty encoding
// selects cl100k_base.
func NewTiktokenCounter(encoding tokenizer.Encoding) *TiktokenCounter {
	if encoding == "" {
		encoding = tokenizer.Cl100kBase
	}
	return &TiktokenCounter{encoding: encoding}
}

// CountText returns the token count of text. If the encoding cannot be
// loaded it falls back to Estimator.
func (c *TiktokenCounter) CountText(text string) int {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
	})
	if c.err != nil {
		return Estimator{}.CountText(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return Estimator{}.CountText(text)
	}
	return len(ids)
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

func (e Estimator) CountText(text string) int {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4.0
	}
	return int(float64(len(text))/cpt + 0.5)
}

// Guard rejects inputs over a token budget.
type Guard struct {
	counter Counter
	max     int
}

// NewGuard creates a guard. A max of zero or less disables the check.
func NewGuard(counter Counter, max int) *Guard {
	if counter == nil {
		counter = NewTiktokenCounter("")
	}
	return &Guard{counter: counter, max: max}
}

// Count returns the token count of text.
func (g *Guard) Count(text string) int {
	return g.counter.CountText(text)
}

// Check returns an invalid_request error with code input_too_long when text
// exceeds the budget.
func (g *Guard) Check(text string) error {
	if g == nil || g.max <= 0 {
		return nil
	}
	if n := g.counter.CountText(text); n > g.max {
		return domain.ErrInvalidRequest(fmt.Sprintf("input is %d tokens, limit is %d", n, g.max)).
			WithCode(domain.ErrorCodeInputTooLong)
	}
	return nil
}
