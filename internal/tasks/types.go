package tasks

import "time"

// Task Types
const (
	// Policy related tasks
	TaskTypePolicyVersionSnapshot = "policy:version_snapshot"
	// API key related tasks
	TaskTypeAPIKeyCleanup = "apikey:cleanup"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like snapshots and cleanup
)

// Task Priorities (1-10, higher is more important)
const (
	PriorityCritical = 10
	PriorityHigh     = 8
	PriorityNormal   = 5
	PriorityLow      = 3
	PriorityBG       = 1
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// CleanupSchedule is the cron spec for the periodic expired API key sweep
const CleanupSchedule = "0 * * * *"
