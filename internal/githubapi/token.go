package githubapi

import (
	"context"
	"fmt"

	"github.com/minhct/gh-event-pipeline/pkg/log"
)

// TokenPool holds the ordered access tokens and the rotation position.
// Rotation is circular; whether the rotated-to token is usable is only
// discovered on the next fetch.
type TokenPool struct {
	Logger log.Logger
	tokens []string
	idx    int
}

func NewTokenPool(logger log.Logger, tokens []string) (*TokenPool, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token pool cannot be empty")
	}
	return &TokenPool{
		Logger: logger,
		tokens: tokens,
	}, nil
}

func (p *TokenPool) Current() string {
	return p.tokens[p.idx]
}

// Rotate advances to the next token and logs the new position.
func (p *TokenPool) Rotate(ctx context.Context) {
	p.idx = (p.idx + 1) % len(p.tokens)
	p.Logger.Info(ctx, "Rotated to token %d/%d", p.idx+1, len(p.tokens))
}

func (p *TokenPool) Size() int {
	return len(p.tokens)
}
