package vault

import (
	"context"
	"fmt"

	"github.com/jmcleod/pinvault/internal/util"
	"golang.org/x/sync/errgroup"
)

// DecryptResult is delivered by DecryptAsync.
type DecryptResult struct {
	Plaintext []byte
	Err       error
}

// DecryptAsync decrypts payload on a background goroutine. The channel is
// buffered, so a caller that stops waiting does not strand the goroutine;
// cancel ctx to stop work that has not started.
func (c *Cipher) DecryptAsync(ctx context.Context, payload []byte) <-chan DecryptResult {
	payload = util.CopyBytes(payload)
	ch := make(chan DecryptResult, 1)
	go func() {
		defer close(ch)
		plaintext, err := c.Decrypt(ctx, payload)
		ch <- DecryptResult{Plaintext: plaintext, Err: err}
	}()
	return ch
}

// DecryptAll decrypts payloads with at most limit running at once. A limit
// of zero or less means no limit. The first failure cancels the rest and no
// plaintexts are returned.
func (c *Cipher) DecryptAll(ctx context.Context, payloads [][]byte, limit int) ([][]byte, error) {
	results := make([][]byte, len(payloads))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, payload := range payloads {
		g.Go(func() error {
			plaintext, err := c.Decrypt(gctx, payload)
			if err != nil {
				return fmt.Errorf("payload %d: %w", i, err)
			}
			results[i] = plaintext
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			util.WipeBytes(r)
		}
		return nil, err
	}
	return results, nil
}
