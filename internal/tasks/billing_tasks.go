package tasks

import (
	"context"
	"time"
)

// GenerateBills expands active billing schedules into student bills
func GenerateBills(ctx context.Context, deps *Deps, args map[string]interface{}) (map[string]interface{}, error) {
	created, err := deps.Billing.GenerateDueBills(time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"created": created}, nil
}

// MarkOverdueBills flips pending bills past their due date to overdue
func MarkOverdueBills(ctx context.Context, deps *Deps, args map[string]interface{}) (map[string]interface{}, error) {
	flipped, err := deps.Billing.MarkOverdue(time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"flipped": flipped}, nil
}
