package tasks

// Task names as stored in scheduled_tasks.task_name
const (
	TaskReconcilePendingPayments = "reconcile_pending_payments"
	TaskGenerateBills            = "generate_bills"
	TaskMarkOverdueBills         = "mark_overdue_bills"
)

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(TaskReconcilePendingPayments, ReconcilePendingPayments)
	RegisterHandler(TaskGenerateBills, GenerateBills)
	RegisterHandler(TaskMarkOverdueBills, MarkOverdueBills)
}
