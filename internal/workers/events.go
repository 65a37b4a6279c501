// Package workers hosts the background loops: the inbound event stream
// consumer and the periodic state cleaner.
package workers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/features/draw"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/payment"
	"reward-giveaway-backend/internal/features/registration"
	"reward-giveaway-backend/internal/platform/redis"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventStreamWorker consumes bot-originated events from a Redis stream and
// dispatches them to the feature services. The bot process is the producer;
// each event is acknowledged after processing so a crash replays it.
type EventStreamWorker struct {
	rdb          *redis.Client
	registration *registration.Service
	payments     *payment.Service
	draws        *draw.Service
	stream       string
	group        string
	consumer     string
	logger       zerolog.Logger
}

func NewEventStreamWorker(
	rdb *redis.Client,
	reg *registration.Service,
	payments *payment.Service,
	draws *draw.Service,
	stream, group, consumer string,
) *EventStreamWorker {
	return &EventStreamWorker{
		rdb:          rdb,
		registration: reg,
		payments:     payments,
		draws:        draws,
		stream:       stream,
		group:        group,
		consumer:     consumer,
		logger:       logger.With("event_stream"),
	}
}

// Start begins listening to the Redis stream for events. Blocks until the
// context is cancelled.
func (w *EventStreamWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		w.logger.Error().Err(err).Msg("Failed to create consumer group")
	}

	w.logger.Info().Str("stream", w.stream).Str("group", w.group).Msg("Event stream worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Event stream worker stopping")
			return
		default:
			entries, err := w.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
				Group:    w.group,
				Consumer: w.consumer,
				Streams:  []string{w.stream, ">"},
				Count:    1,
				Block:    5 * time.Second,
			}).Result()
			if err != nil {
				if err != goredis.Nil && ctx.Err() == nil {
					w.logger.Error().Err(err).Msg("Failed to read from stream")
					time.Sleep(time.Second)
				}
				continue
			}

			for _, stream := range entries {
				for _, msg := range stream.Messages {
					w.processMessage(ctx, msg.Values)
					w.rdb.XAck(ctx, w.stream, w.group, msg.ID)
				}
			}
		}
	}
}

func (w *EventStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) {
	eventType, ok := values["type"].(string)
	if !ok {
		return
	}

	switch eventType {
	case "register":
		w.handleRegister(ctx, values)
	case "confirm_payment":
		w.handleConfirmPayment(ctx, values)
	case "execute_draw":
		w.handleExecuteDraw(ctx, values)
	default:
		w.logger.Debug().Str("type", eventType).Msg("Ignoring unknown event")
	}
}

func (w *EventStreamWorker) handleRegister(ctx context.Context, values map[string]interface{}) {
	userID, ok := int64Field(values, "user_id")
	if !ok {
		w.logger.Warn().Interface("values", values).Msg("Invalid user_id in register event")
		return
	}
	accountID, _ := values["account_id"].(string)
	displayName, _ := values["display_name"].(string)
	typeID := models.TypeID(stringField(values, "giveaway_type"))

	if _, err := w.registration.Register(ctx, userID, displayName, accountID, typeID); err != nil {
		// Rejections are the pipeline's normal output, not worker failures.
		w.logger.Info().Err(err).Int64("user_id", userID).Str("giveaway_type", string(typeID)).
			Msg("Registration rejected")
	}
}

func (w *EventStreamWorker) handleConfirmPayment(ctx context.Context, values map[string]interface{}) {
	winnerID := stringField(values, "winner_id")
	actor := stringField(values, "actor")
	typeID := models.TypeID(stringField(values, "giveaway_type"))
	if winnerID == "" {
		w.logger.Warn().Interface("values", values).Msg("Missing winner_id in confirm_payment event")
		return
	}
	if _, err := w.payments.Confirm(ctx, actor, typeID, winnerID); err != nil {
		w.logger.Info().Err(err).Str("winner_id", winnerID).Str("actor", actor).
			Msg("Payment confirmation rejected")
	}
}

func (w *EventStreamWorker) handleExecuteDraw(ctx context.Context, values map[string]interface{}) {
	actor := stringField(values, "actor")
	typeID := models.TypeID(stringField(values, "giveaway_type"))
	if _, err := w.draws.ExecuteManual(ctx, actor, typeID); err != nil {
		w.logger.Info().Err(err).Str("actor", actor).Str("giveaway_type", string(typeID)).
			Msg("Manual draw rejected")
	}
}

func stringField(values map[string]interface{}, key string) string {
	s, _ := values[key].(string)
	return s
}

func int64Field(values map[string]interface{}, key string) (int64, bool) {
	s, ok := values[key].(string)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
