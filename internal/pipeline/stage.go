// Package pipeline provides the worker-pool loop shared by the
// extraction, scoring, and alerting stages: each owns one consumer
// identity within a consumer group on its input stream, processes one
// batch at a time, and leaves entries that failed transiently or were
// cancelled unacknowledged for a peer to reclaim. Generalizes the teacher's single-flight, mutex-guarded
// work processor to N independent stream-consumer workers.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/streams"
)

// FailureKind classifies why a Handler failed, so the worker loop can
// decide whether to ack (the message is resolved, even if unsuccessfully)
// or leave it pending for redelivery/claim.
type FailureKind int

const (
	// FailureNone means the handler succeeded; ack.
	FailureNone FailureKind = iota
	// FailureTransient is a retryable infrastructure error (store, LLM,
	// embedding, notification); leave unacked for claim.
	FailureTransient
	// FailureMalformed is a parse/schema failure the handler has already
	// applied its retry-then-degrade policy to; ack.
	FailureMalformed
	// FailureMissingReference is an unresolved entity reference; the
	// handler proceeds with a degraded result; ack.
	FailureMissingReference
	// FailureDuplicate means the work was already done; ack silently.
	FailureDuplicate
	// FailureInvariant is a fatal per-message invariant violation; ack.
	FailureInvariant
	// FailureCancelled means the context was cancelled mid-handler;
	// leave unacked for redelivery.
	FailureCancelled
)

// shouldAck reports whether a FailureKind resolves the message.
func (k FailureKind) shouldAck() bool {
	switch k {
	case FailureTransient, FailureCancelled:
		return false
	default:
		return true
	}
}

// Handler processes one stream entry and reports how it was resolved.
type Handler func(ctx context.Context, entry streams.Entry) (FailureKind, error)

// Stage runs Handler against every entry on a stream/group, via a pool
// of workers each owning its own consumer identity.
type Stage struct {
	Name     string
	Stream   string
	Group    string
	Workers  int
	Batch    int64
	Block    time.Duration
	MinIdle  time.Duration
	Deadline time.Duration

	client  *streams.Client
	handler Handler
	log     zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex

	started bool
}

// NewStage builds a Stage with one worker, a batch of 10, a 5s block, a
// 5m claim min-idle and a 60s per-message deadline; Workers, Batch, Block,
// MinIdle and Deadline may be overwritten on the returned value before
// calling Run.
func NewStage(name, stream, group string, client *streams.Client, handler Handler, log zerolog.Logger) *Stage {
	return &Stage{
		Name:     name,
		Stream:   stream,
		Group:    group,
		Workers:  1,
		Batch:    10,
		Block:    5 * time.Second,
		MinIdle:  5 * time.Minute,
		Deadline: 60 * time.Second,
		client:   client,
		handler:  handler,
		log:      log.With().Str("stage", name).Logger(),
		stop:     make(chan struct{}),
	}
}

// Run ensures the consumer group exists, then starts Workers goroutines
// consuming and claiming entries until ctx is done or Stop is called.
func (s *Stage) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.client.EnsureGroup(ctx, s.Stream, s.Group); err != nil {
		return fmt.Errorf("stage %s: %w", s.Name, err)
	}

	for i := 0; i < s.Workers; i++ {
		consumer := fmt.Sprintf("%s-worker-%d", s.Name, i)
		s.wg.Add(1)
		go s.runWorker(ctx, consumer)
	}

	return nil
}

// Stop signals every worker to exit and waits for them to finish.
func (s *Stage) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	s.log.Info().Msg("stage stopped")
}

func (s *Stage) runWorker(ctx context.Context, consumer string) {
	defer s.wg.Done()

	claimTicker := time.NewTicker(s.MinIdle)
	defer claimTicker.Stop()

	log := s.log.With().Str("consumer", consumer).Logger()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-claimTicker.C:
			entries, err := s.client.Claim(ctx, s.Stream, s.Group, consumer, s.MinIdle, s.Batch)
			if err != nil {
				log.Error().Err(err).Msg("claim failed")
				continue
			}
			s.process(ctx, consumer, entries, log)
		default:
			entries, err := s.client.Consume(ctx, s.Stream, s.Group, consumer, s.Batch, s.Block)
			if err != nil {
				log.Error().Err(err).Msg("consume failed")
				continue
			}
			s.process(ctx, consumer, entries, log)
		}
	}
}

func (s *Stage) process(ctx context.Context, consumer string, entries []streams.Entry, log zerolog.Logger) {
	var toAck []string

	for _, entry := range entries {
		msgCtx, cancel := context.WithTimeout(ctx, s.Deadline)
		kind, err := s.handler(msgCtx, entry)
		cancel()

		if err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Int("failure_kind", int(kind)).Msg("handler error")
		}

		if kind.shouldAck() {
			toAck = append(toAck, entry.ID)
		}
	}

	if len(toAck) == 0 {
		return
	}
	if err := s.client.Ack(ctx, s.Stream, s.Group, toAck...); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}
