package models

import (
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// BillingSchedule describes a recurring charge applied to a class or to the
// whole school (monthly tuition, yearly re-registration). The worker expands
// it into StudentBill rows.
type BillingSchedule struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name              string     `gorm:"type:varchar(255)" json:"name"`
	ClassName         string     `gorm:"type:varchar(100)" json:"class_name"` // empty = all classes
	Amount            int64      `json:"amount"`
	StartDate         time.Time  `json:"start_date"`
	RecurringInterval *string    `gorm:"type:text" json:"recurring_interval"` // RFC 5545 RRULE string, nil = one-time
	LastGeneratedAt   *time.Time `json:"last_generated_at,omitempty"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
}

// NextDue calculates the next billing date at or after the given time
func (s BillingSchedule) NextDue(after time.Time) time.Time {
	if s.RecurringInterval == nil || *s.RecurringInterval == "" {
		return s.StartDate
	}

	rule, err := rrule.StrToRRule(*s.RecurringInterval)
	if err != nil {
		// Fallback to start date if parsing fails
		return s.StartDate
	}
	rule.DTStart(s.StartDate)
	next := rule.After(after, true)
	if next.IsZero() {
		return s.StartDate
	}
	return next
}
