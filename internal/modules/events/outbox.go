package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oneonone97/Ecom-sub000/pkg/kafka"
)

const TopicOrderLifecycle = "orders.lifecycle"

type OutboxRecord struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	EventID   string         `gorm:"type:char(36);not null;uniqueIndex:ux_outbox_event_id"`
	Topic     string         `gorm:"type:varchar(128);not null"`
	Key       string         `gorm:"type:varchar(128);not null"`
	Payload   datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time      `gorm:"type:datetime(3);not null"`
	SentAt    *time.Time     `gorm:"type:datetime(3);index:ix_outbox_sent_at"`
}

func (OutboxRecord) TableName() string { return "outbox_records" }

// EnqueueInTx writes the record inside the caller's transaction so the event
// commits or rolls back together with the state change it describes.
func EnqueueInTx(ctx context.Context, tx *gorm.DB, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	rec := OutboxRecord{
		EventID:   uuid.NewString(),
		Topic:     topic,
		Key:       key,
		Payload:   datatypes.JSON(data),
		CreatedAt: time.Now(),
	}
	return tx.WithContext(ctx).Create(&rec).Error
}

func FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]OutboxRecord, error) {
	var out []OutboxRecord
	err := db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func MarkSent(ctx context.Context, db *gorm.DB, id uint64) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id = ?", id).
		Update("sent_at", &now).Error
}

// Publisher drains pending outbox records to the broker. Publishing is
// at-least-once: a record is marked sent only after the write succeeds.
type Publisher struct {
	db       *gorm.DB
	client   *kafka.Client
	logger   *slog.Logger
	interval time.Duration

	writers map[string]*kafkago.Writer
}

func NewPublisher(db *gorm.DB, client *kafka.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:       db,
		client:   client,
		logger:   logger,
		interval: 2 * time.Second,
		writers:  make(map[string]*kafkago.Writer),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if !p.client.Enabled() {
		p.logger.Info("outbox publisher disabled: no kafka brokers configured")
		return
	}

	t := time.NewTicker(p.interval)
	defer t.Stop()
	defer p.closeWriters()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error("outbox drain failed", "err", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context) error {
	recs, err := FetchPending(ctx, p.db, 100)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		w := p.writerFor(rec.Topic)
		if err := w.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt,
		}); err != nil {
			return err
		}
		if err := MarkSent(ctx, p.db, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) writerFor(topic string) *kafkago.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.client.NewWriter(topic)
	p.writers[topic] = w
	return w
}

func (p *Publisher) closeWriters() {
	for _, w := range p.writers {
		_ = w.Close()
	}
}
