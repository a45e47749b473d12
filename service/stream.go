package service

import (
	"context"

	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/pkg/hex"
	"github.com/sirupsen/logrus"
)

// BlockEvent is one item of the finalized block stream. A non-nil Err is the
// last event of a stream.
type BlockEvent struct {
	Number uint64  `json:"number"`
	Hash   hex.Hex `json:"hash,omitempty"`
	Err    error   `json:"-"`
}

// StreamBlockNumbers emits every finalized block until ctx ends. If the upstream
// subscription fails the stream ends with a single error event.
func (s *Service) StreamBlockNumbers(ctx context.Context) (<-chan BlockEvent, error) {
	blocks, errs, err := s.reader.SubscribeFinalized(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ChainUnavailable, err, "could not subscribe to finalized blocks")
	}

	out := make(chan BlockEvent)
	send := func(ev BlockEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		logrus.WithError(err).Warn("block stream ended")
		send(BlockEvent{Err: errors.Wrap(errors.ChainUnavailable, err, "block stream failed")})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ref, ok := <-blocks:
				if !ok {
					// an error, if any, was sent before the channels closed
					if errs != nil {
						if err, ok := <-errs; ok && err != nil && ctx.Err() == nil {
							fail(err)
						}
					}
					return
				}
				if !send(BlockEvent{Number: ref.Number, Hash: ref.Hash}) {
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					fail(err)
					return
				}
			}
		}
	}()
	return out, nil
}
