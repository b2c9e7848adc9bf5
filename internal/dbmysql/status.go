package dbmysql

import (
	"fmt"
	"time"
)

// DeliveryStatus is ordered: a row only ever moves to a larger value.
type DeliveryStatus uint8

const (
	StatusSent DeliveryStatus = iota
	StatusDelivered
	StatusRead
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch s {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "read":
		return StatusRead, nil
	}
	return 0, fmt.Errorf("unknown delivery status %q", s)
}

func (s DeliveryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeliveryStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseDeliveryStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type MessageStatus struct {
	MessageID   uint64         `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID      uint64         `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Status      DeliveryStatus `gorm:"not null;default:0" json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (MessageStatus) TableName() string {
	return "message_statuses"
}
