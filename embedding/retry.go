// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"
	"errors"
	"time"
)

// finalError carries a backend answer that another attempt would not change,
// such as a vector of the wrong length.
type finalError struct {
	err error
}

func (f *finalError) Error() string { return f.err.Error() }
func (f *finalError) Unwrap() error { return f.err }

func final(err error) error {
	if err == nil {
		return nil
	}
	return &finalError{err: err}
}

// backoff returns the wait after the given failed attempt, counting from one.
func (g *Generator) backoff(attempt int) time.Duration {
	return g.baseDelay << (attempt - 1)
}

// withRetries calls embed up to maxAttempts times, waiting baseDelay,
// 2*baseDelay, 4*baseDelay and so on between failures. It stops early when
// ctx ends or embed returns a final error, which is handed back unwrapped.
// Otherwise the last failure is returned.
func (g *Generator) withRetries(ctx context.Context, texts int, embed func() error) error {
	if g.maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = embed(); err == nil {
			if attempt > 1 {
				g.logger.Debug("embedding recovered", "texts", texts, "attempt", attempt)
			}
			return nil
		}
		var fe *finalError
		if errors.As(err, &fe) {
			return fe.err
		}
		if attempt == g.maxAttempts {
			return err
		}

		wait := g.backoff(attempt)
		g.logger.Debug("embedding call failed, backing off", "texts", texts, "attempt", attempt, "of", g.maxAttempts, "wait", wait, "err", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
