// Package notify delivers user notifications produced by lifecycle transitions.
// Delivery is best effort: failures are logged and counted, never returned to the
// transition that produced them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"droneDispatch/models"
	"droneDispatch/repository"
)

// Sink delivers one notification to one user.
type Sink interface {
	Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, userID string, event models.EventType, payload map[string]any) error

func (f SinkFunc) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	return f(ctx, userID, event, payload)
}

// Nop discards every notification.
var Nop Sink = SinkFunc(func(context.Context, string, models.EventType, map[string]any) error { return nil })

// Message is the JSON body published on external channels.
type Message struct {
	UserID    string           `json:"userId"`
	Type      models.EventType `json:"type"`
	Values    map[string]any   `json:"values"`
	CreatedAt time.Time        `json:"createdAt"`
}

func encode(userID string, event models.EventType, payload map[string]any) ([]byte, error) {
	return json.Marshal(Message{UserID: userID, Type: event, Values: payload, CreatedAt: time.Now().UTC()})
}

// StoreSink persists notifications so users can list them later.
type StoreSink struct {
	repo repository.NotificationRepositoryI
}

func NewStoreSink(repo repository.NotificationRepositoryI) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	return s.repo.Create(ctx, &models.Notification{UserID: userID, Type: event, Values: payload})
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, userID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
