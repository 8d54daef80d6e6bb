package escrow

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event kinds, mirroring the contract's event surface.
const (
	EventClaimCreated = "ClaimCreated"
	EventClaimed      = "Claimed"
)

// Event is one entry in the append-only notification stream. Delivery to
// downstream indexers is at-least-once; EventID lets them dedupe.
type Event struct {
	EventID       string         `json:"eventId"`
	Type          string         `json:"type"`
	ClaimCodeHash common.Hash    `json:"claimCodeHash"`
	Amount        *big.Int       `json:"amount"`
	Recipient     common.Address `json:"recipient"`
	Sender        common.Address `json:"sender,omitempty"`
	EmittedAt     time.Time      `json:"emittedAt"`
}

func newEvent(kind string, hash common.Hash, amount *big.Int, recipient, sender common.Address) Event {
	return Event{
		EventID:       uuid.NewString(),
		Type:          kind,
		ClaimCodeHash: hash,
		Amount:        new(big.Int).Set(amount),
		Recipient:     recipient,
		Sender:        sender,
		EmittedAt:     time.Now().UTC(),
	}
}

// Sink receives protocol events. Emit must not fail the claim operation that
// produced the event: sinks log and move on.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Emit(_ context.Context, ev Event) {
	s.Log.Info().
		Str("eventId", ev.EventID).
		Str("type", ev.Type).
		Str("claimCodeHash", ev.ClaimCodeHash.Hex()).
		Str("amount", ev.Amount.String()).
		Str("recipient", ev.Recipient.Hex()).
		Str("sender", ev.Sender.Hex()).
		Msg("escrow event")
}

// RedisSink publishes events as JSON on a channel for live subscribers.
type RedisSink struct {
	Client  *redis.Client
	Channel string
	Log     zerolog.Logger
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.Log.Error().Err(err).Str("eventId", ev.EventID).Msg("marshal escrow event")
		return
	}
	if err := s.Client.Publish(ctx, s.Channel, payload).Err(); err != nil {
		s.Log.Warn().Err(err).Str("eventId", ev.EventID).Msg("publish escrow event")
	}
}

// MemorySink collects events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (s MultiSink) Emit(ctx context.Context, ev Event) {
	for _, sink := range s {
		sink.Emit(ctx, ev)
	}
}
