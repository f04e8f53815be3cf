package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"sekolah_app_echo/internal/models"
)

// BillingService expands recurring billing schedules into student bills and
// keeps bill statuses current.
type BillingService struct {
	db *gorm.DB
}

func NewBillingService(db *gorm.DB) *BillingService {
	return &BillingService{db: db}
}

// GenerateDueBills creates bills for every active schedule whose next
// occurrence has arrived. A bill is identified by (schedule, student,
// period) so re-running the generator never duplicates.
func (s *BillingService) GenerateDueBills(now time.Time) (int, error) {
	var schedules []models.BillingSchedule
	if err := s.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return 0, fmt.Errorf("failed to load billing schedules: %w", err)
	}

	created := 0
	for _, schedule := range schedules {
		after := schedule.StartDate.Add(-24 * time.Hour)
		if schedule.LastGeneratedAt != nil {
			after = *schedule.LastGeneratedAt
		}

		due := schedule.NextDue(after)
		if due.After(now) {
			continue
		}

		n, err := s.generateForSchedule(&schedule, due)
		if err != nil {
			log.Printf("billing: schedule %d generation failed: %v", schedule.ID, err)
			continue
		}
		created += n

		if err := s.db.Model(&schedule).Update("last_generated_at", due).Error; err != nil {
			log.Printf("billing: failed to advance schedule %d: %v", schedule.ID, err)
		}
	}

	return created, nil
}

func (s *BillingService) generateForSchedule(schedule *models.BillingSchedule, due time.Time) (int, error) {
	query := s.db.Model(&models.Student{})
	if schedule.ClassName != "" {
		query = query.Where("class_name = ?", schedule.ClassName)
	}

	var students []models.Student
	if err := query.Find(&students).Error; err != nil {
		return 0, err
	}

	period := due.Format("January 2006")
	created := 0
	for _, student := range students {
		var count int64
		s.db.Model(&models.StudentBill{}).
			Where("billing_schedule_id = ? AND student_id = ? AND period = ?", schedule.ID, student.ID, period).
			Count(&count)
		if count > 0 {
			continue
		}

		bill := models.StudentBill{
			StudentID:         student.ID,
			BillingScheduleID: &schedule.ID,
			Title:             schedule.Name,
			Period:            period,
			Amount:            schedule.Amount,
			Status:            models.BillStatusPending,
			DueDate:           due,
		}
		if err := s.db.Create(&bill).Error; err != nil {
			log.Printf("billing: failed to create bill for student %d: %v", student.ID, err)
			continue
		}
		created++
	}

	return created, nil
}

// MarkOverdue flips pending bills past their due date to overdue
func (s *BillingService) MarkOverdue(now time.Time) (int64, error) {
	res := s.db.Model(&models.StudentBill{}).
		Where("status = ? AND due_date < ?", models.BillStatusPending, now).
		Update("status", models.BillStatusOverdue)
	return res.RowsAffected, res.Error
}
