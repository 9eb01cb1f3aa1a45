package constants

// Database pool defaults
const (
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"
)

// Scheduling defaults
const (
	DefaultSlotDurationMinutes   = 30
	DefaultGenerationWindowDays  = 30
	DefaultQueryCacheTTLSeconds  = 300
	DefaultSyncIntervalMinutes   = 15
	DefaultMaxConnectionsPerUser = 5
	DefaultMaxConcurrentBookings = 10

	// Day availability is derived in fixed 15-minute slices.
	AvailabilitySliceMinutes = 15
)

// Background task type names registered with the asynq mux.
const (
	TaskSlotRegeneration = "scheduling:regenerate_slots"
	TaskSyncScan         = "calendar:sync_scan"
	TaskRunSync          = "calendar:run_sync"
	TaskWorkflowStep     = "booking:workflow_step"
)
