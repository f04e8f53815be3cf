package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"sekolah_app_echo/internal/models"
	"sekolah_app_echo/internal/services"
)

type BillHandler struct {
	db      *gorm.DB
	billing *services.BillingService
}

func NewBillHandler(db *gorm.DB, billing *services.BillingService) *BillHandler {
	return &BillHandler{db: db, billing: billing}
}

// CreateStudent registers a student with the guardian payer contact
func (h *BillHandler) CreateStudent(c echo.Context) error {
	var payload CreateStudentPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if payload.Name == "" || payload.StudentNumber == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Name and student number are required")
	}

	student := models.Student{
		Name:          payload.Name,
		StudentNumber: payload.StudentNumber,
		ClassName:     payload.ClassName,
		GuardianName:  payload.GuardianName,
		GuardianEmail: payload.GuardianEmail,
		GuardianPhone: payload.GuardianPhone,
	}
	if err := h.db.Create(&student).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create student")
	}
	return c.JSON(http.StatusCreated, student)
}

// CreateBill creates a one-off bill for a student
func (h *BillHandler) CreateBill(c echo.Context) error {
	var payload CreateBillPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if payload.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Amount must be positive")
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid due_date, expected RFC 3339")
	}

	var student models.Student
	if err := h.db.First(&student, payload.StudentID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Student not found")
	}

	bill := models.StudentBill{
		StudentID: student.ID,
		Title:     payload.Title,
		Period:    payload.Period,
		Amount:    payload.Amount,
		Status:    models.BillStatusPending,
		DueDate:   dueDate,
	}
	if err := h.db.Create(&bill).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create bill")
	}
	return c.JSON(http.StatusCreated, bill)
}

// GetBill returns a bill with its payment attempts
func (h *BillHandler) GetBill(c echo.Context) error {
	var bill models.StudentBill
	if err := h.db.Preload("Student").Preload("Payments").First(&bill, "id = ?", c.Param("id")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Bill not found")
	}
	return c.JSON(http.StatusOK, bill)
}

// ListStudentBills returns all bills for one student
func (h *BillHandler) ListStudentBills(c echo.Context) error {
	var bills []models.StudentBill
	if err := h.db.Where("student_id = ?", c.Param("id")).Order("due_date desc").Find(&bills).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list bills")
	}
	return c.JSON(http.StatusOK, bills)
}

// CreateSchedule creates a recurring billing schedule
func (h *BillHandler) CreateSchedule(c echo.Context) error {
	var payload CreateSchedulePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if payload.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Amount must be positive")
	}

	startDate, err := time.Parse(time.RFC3339, payload.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid start_date, expected RFC 3339")
	}

	schedule := models.BillingSchedule{
		Name:      payload.Name,
		ClassName: payload.ClassName,
		Amount:    payload.Amount,
		StartDate: startDate,
		IsActive:  true,
	}
	if payload.RecurringInterval != "" {
		schedule.RecurringInterval = &payload.RecurringInterval
	}
	if err := h.db.Create(&schedule).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create schedule")
	}
	return c.JSON(http.StatusCreated, schedule)
}

// GenerateBills manually triggers schedule expansion, same as the worker
func (h *BillHandler) GenerateBills(c echo.Context) error {
	created, err := h.billing.GenerateDueBills(time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate bills")
	}
	return c.JSON(http.StatusOK, map[string]int{"created": created})
}
