package transcribe

import (
	"context"

	"github.com/MimeLyc/lecture-pipeline/internal/chain"
)

type Chain struct {
	inner *chain.Chain[string, string]
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{inner: chain.New[string, string]("transcription", chain.BlankString, providers...)}
}

func (c *Chain) Providers() []string {
	return c.inner.Providers()
}

func (c *Chain) Transcribe(ctx context.Context, videoPath string) (Result, error) {
	res, err := c.inner.Run(ctx, videoPath)
	if err != nil {
		return Result{}, err
	}
	skipped := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		skipped = append(skipped, f.Provider)
	}
	return Result{Text: res.Value, Provider: res.Provider, Skipped: skipped}, nil
}
