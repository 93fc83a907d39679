package client

import (
	"context"
	"errors"
	"io"

	"github.com/user/converse/internal/aggregate"
	"github.com/user/converse/pkg/chat"
)

// Stream is an in-flight streaming response. Chunks are delivered in FIFO
// order on Chunks(); once the channel closes, Final returns the aggregated
// response, which equals what Invoke would have produced for the same call.
// Abandoning the stream early (Close before the channel closes) discards
// partial state: Final reports the cancellation and no result exists. The
// underlying transport handle is released on every exit path.
type Stream struct {
	chunks chan chat.Chunk
	cancel context.CancelFunc
	done   chan struct{}

	final *chat.Response
	err   error
}

// Chunks returns the channel of incremental response fragments. It is
// closed when the stream ends or is abandoned.
func (s *Stream) Chunks() <-chan chat.Chunk { return s.chunks }

// Close abandons the stream. It is safe to call at any time, including
// after normal completion.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// Final blocks until the stream ends and returns the aggregated response.
func (s *Stream) Final() (*chat.Response, error) {
	<-s.done
	return s.final, s.err
}

// Stream sends the conversation and returns incremental response chunks.
// Aggregation uses the same combine logic as the blocking path.
func (c *Client) Stream(ctx context.Context, messages []chat.Message, opts ...RequestOption) (*Stream, error) {
	payload, warnings, err := c.prepare(messages, nil, opts)
	if err != nil {
		return nil, err
	}
	return c.openStream(ctx, payload, warnings, nil)
}

// openStream acquires a concurrency slot and the transport handle, then
// pumps chunks on a goroutine that guarantees release of both.
func (c *Client) openStream(ctx context.Context, payload *chat.Payload, warnings []chat.Warning, observe func(*aggregate.Accumulator)) (*Stream, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	handle, err := c.transport.ConverseStream(ctx, payload)
	if err != nil {
		cancel()
		release()
		return nil, err
	}

	s := &Stream{
		chunks: make(chan chat.Chunk),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer release()
		defer close(s.done)
		defer close(s.chunks)
		defer handle.Close()

		acc := &aggregate.Accumulator{}
		for {
			chunk, err := handle.Recv()
			if errors.Is(err, io.EOF) {
				final, ferr := acc.Finalize()
				if ferr != nil {
					s.err = ferr
					return
				}
				final.Warnings = warnings
				s.final = final
				return
			}
			if err != nil {
				s.err = err
				return
			}
			if chunk.Empty() {
				continue
			}
			if err := acc.Add(chunk); err != nil {
				s.err = err
				return
			}
			if observe != nil {
				observe(acc)
			}
			select {
			case s.chunks <- chunk:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
	}()

	return s, nil
}

// StructuredStream delivers progressively decoded structured-output values
// while the response streams. Values() emits a snapshot whenever the
// accumulated output decodes against the schema; the last value is the
// complete object. Err reports a decode failure of the final output as a
// *chat.OutputParserError.
type StructuredStream struct {
	values chan any
	inner  *Stream

	err error
}

// Values returns the channel of decoded snapshots. It is closed when the
// stream ends.
func (ss *StructuredStream) Values() <-chan any { return ss.values }

// Close abandons the stream.
func (ss *StructuredStream) Close() { ss.inner.Close() }

// Err returns the terminal error, if any, once Values is closed.
func (ss *StructuredStream) Err() error { return ss.err }

// StreamStructured sends the conversation with a forced output schema and
// emits decoded snapshots as chunks arrive. newValue allocates a fresh
// destination for each decode attempt.
func (c *Client) StreamStructured(ctx context.Context, messages []chat.Message, schema chat.ToolSpec, newValue func() any, opts ...RequestOption) (*StructuredStream, error) {
	payload, warnings, err := c.prepare(messages, &schema, opts)
	if err != nil {
		return nil, err
	}

	ss := &StructuredStream{values: make(chan any)}

	snapshots := make(chan *chat.Response)
	inner, err := c.openStream(ctx, payload, warnings, func(acc *aggregate.Accumulator) {
		snapshot := acc.Snapshot()
		select {
		case snapshots <- snapshot:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(ss.values)
		return nil, err
	}
	ss.inner = inner

	go func() {
		defer close(ss.values)

		// Drain chunks; decoding works off accumulator snapshots.
		go func() {
			for range inner.Chunks() {
			}
			close(snapshots)
		}()

		for snapshot := range snapshots {
			v := newValue()
			if aggregate.DecodePartial(snapshot.Message, schema, v) {
				select {
				case ss.values <- v:
				case <-ctx.Done():
				}
			}
		}

		final, err := inner.Final()
		if err != nil {
			ss.err = err
			return
		}
		v := newValue()
		if err := aggregate.DecodeStructured(final.Message, schema, v); err != nil {
			ss.err = err
			return
		}
		select {
		case ss.values <- v:
		case <-ctx.Done():
		}
	}()

	return ss, nil
}
