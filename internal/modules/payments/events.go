package payments

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProviderEvent archives every webhook delivery and dedupes replays on the
// unique (provider, event_id) pair.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt  *time.Time `gorm:"type:datetime(3)"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Record persists the delivery; returns false when the (provider, event id)
// pair was seen before, so the caller can short-circuit to the current state.
func (s *EventStore) Record(ctx context.Context, provider string, ev WebhookEvent, rawBody []byte) (bool, error) {
	pe := ProviderEvent{
		ID:          uuid.NewString(),
		Provider:    provider,
		EventID:     ev.EventID,
		EventType:   ev.EventType,
		PayloadJSON: datatypes.JSON(rawBody),
		ReceivedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&pe).Error; err != nil {
		if isDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkProcessed closes out the event; a non-nil applyErr is recorded so the
// provider's retry can be correlated with the failure.
func (s *EventStore) MarkProcessed(ctx context.Context, provider, eventID string, applyErr error) error {
	updates := map[string]any{}
	if applyErr != nil {
		msg := truncate(applyErr.Error(), 250)
		updates["process_error"] = msg
	} else {
		now := time.Now()
		updates["processed_at"] = &now
		updates["process_error"] = nil
	}
	return s.db.WithContext(ctx).Model(&ProviderEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates).Error
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
