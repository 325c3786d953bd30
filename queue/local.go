package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

// queuedRow keeps the event verbatim as JSON; seq is AUTOINCREMENT so order
// survives a Clear.
type queuedRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	EventID   string `gorm:"uniqueIndex;not null"`
	Type      string `gorm:"not null"`
	Payload   string `gorm:"not null"`
	CreatedAt time.Time
}

func (queuedRow) TableName() string { return "ponto_queue" }

// Local is the device-local queue on SQLite (gorm). The file belongs to one
// agent process; terminals sharing a queue use Postgres.
type Local struct {
	db *gorm.DB
}

func NewLocal(db *gorm.DB) (*Local, error) {
	if err := db.AutoMigrate(&queuedRow{}); err != nil {
		return nil, fmt.Errorf("migrate ponto_queue: %w", err)
	}
	return &Local{db: db}, nil
}

func (l *Local) Append(ctx context.Context, ev models.AttendanceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	row := queuedRow{EventID: ev.ID, Type: string(ev.Type), Payload: string(payload)}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (l *Local) PeekFront(ctx context.Context) (models.AttendanceEvent, bool, error) {
	var rows []queuedRow
	if err := l.db.WithContext(ctx).Order("seq asc").Limit(1).Find(&rows).Error; err != nil {
		return models.AttendanceEvent{}, false, err
	}
	if len(rows) == 0 {
		return models.AttendanceEvent{}, false, nil
	}
	ev, err := decodeRow(rows[0].EventID, []byte(rows[0].Payload))
	if err != nil {
		return models.AttendanceEvent{}, false, err
	}
	return ev, true, nil
}

func (l *Local) PopFront(ctx context.Context, eventID string) error {
	return l.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&queuedRow{}).Error
}

func (l *Local) Clear(ctx context.Context) error {
	return l.db.WithContext(ctx).Where("1 = 1").Delete(&queuedRow{}).Error
}

func (l *Local) LoadAll(ctx context.Context) ([]models.AttendanceEvent, error) {
	var rows []queuedRow
	if err := l.db.WithContext(ctx).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.AttendanceEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := decodeRow(r.EventID, []byte(r.Payload))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (l *Local) Len(ctx context.Context) (int, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&queuedRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func decodeRow(id string, payload []byte) (models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.AttendanceEvent{}, fmt.Errorf("decode queued event %s: %w", id, err)
	}
	return ev, nil
}
