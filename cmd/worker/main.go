package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sekolah_app_echo/internal/models"
	"sekolah_app_echo/internal/services"
	"sekolah_app_echo/internal/tasks"
)

// workerLockTTL keeps two worker instances from running the same tick
const workerLockTTL = 4 * time.Minute

// runLockDisposition decides a tick from the SetNX outcome: run anyway when
// Redis errored (the lock is best-effort), skip when another instance holds
// the lock, and release only a lock this instance actually acquired.
func runLockDisposition(got bool, err error) (run, release bool) {
	if err != nil {
		return true, false
	}
	if !got {
		return false, false
	}
	return true, true
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize Redis (optional, used as a run lock)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Payment core, same wiring as the server
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if serverKey == "" {
		log.Fatal("MIDTRANS_SERVER_KEY not set")
	}

	gateway := services.NewMidtransGateway(services.GatewayConfig{
		ServerKey:  serverKey,
		Production: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		Timeout:    30 * time.Second,
	})
	catalog := services.NewFeeCatalog(10000, 100000000)
	builder := services.NewTransactionBuilder(services.BuilderConfig{}, catalog)
	store := services.NewGormPaymentStore(db)
	webhooks := services.NewWebhookService(store, serverKey)
	payments := services.NewPaymentService(store, gateway, builder, catalog, webhooks, cache)
	billing := services.NewBillingService(db)

	deps := &tasks.Deps{DB: db, Payments: payments, Billing: billing}

	// Initialize Task Registry
	tasks.DefineTasks()

	log.Println("Worker started. Waiting for next tick...")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	// Run once immediately, then on every tick
	runDueTasks(ctx, deps, cache)

	for {
		select {
		case <-ticker.C:
			runDueTasks(ctx, deps, cache)
		case <-ctx.Done():
			return
		}
	}
}

func runDueTasks(ctx context.Context, deps *tasks.Deps, cache *services.RedisCache) {
	// Only one worker instance should process a tick
	if cache != nil {
		got, err := cache.SetNX(ctx, "worker:run-lock", time.Now().Unix(), workerLockTTL)
		run, release := runLockDisposition(got, err)
		if err != nil {
			log.Printf("Run lock unavailable, proceeding without it: %v", err)
		}
		if !run {
			log.Println("Another worker holds the run lock, skipping tick")
			return
		}
		if release {
			defer cache.Delete(ctx, "worker:run-lock")
		}
	}

	log.Println("Checking for due tasks...")

	var dueTasks []models.ScheduledTask
	now := time.Now()
	if err := deps.DB.Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).Find(&dueTasks).Error; err != nil {
		log.Printf("Error fetching due tasks: %v", err)
		return
	}

	if len(dueTasks) == 0 {
		log.Println("No due tasks found.")
		return
	}

	log.Printf("Found %d due tasks.", len(dueTasks))

	for _, task := range dueTasks {
		if ctx.Err() != nil {
			return
		}
		executeTask(ctx, deps, task)
	}
}

func executeTask(ctx context.Context, deps *tasks.Deps, task models.ScheduledTask) {
	log.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	handler, found := tasks.GetHandler(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		now := time.Now()
		deps.DB.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		deps.DB.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	startTime := time.Now()
	result, err := handler(ctx, deps, task.Arguments)
	runtimeMs := int(time.Since(startTime).Milliseconds())

	status := "success"
	if err != nil {
		status = "failure"
		result = map[string]interface{}{"error": err.Error()}
		log.Printf("Task %s failed: %v", task.TaskName, err)
	} else {
		log.Printf("Task %s completed successfully.", task.TaskName)
	}

	deps.DB.Create(&models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		RuntimeMs:       runtimeMs,
		Status:          status,
		Arguments:       task.Arguments,
		Result:          result,
	})

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	if status != "success" {
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeOneTime:
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		case models.ScheduledTaskTypeRecurring:
			nextDue := task.NextDue()
			// advance only to a future occurrence so the task cannot
			// run in a tight loop
			if nextDue.After(task.Due) {
				taskUpdates["status"] = models.ScheduledTaskStatusActive
				taskUpdates["due"] = nextDue
			} else {
				taskUpdates["status"] = models.ScheduledTaskStatusDone
			}
		}
	}

	deps.DB.Model(&task).Updates(taskUpdates)
}
