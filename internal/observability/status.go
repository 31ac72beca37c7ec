package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle    Role = "IDLE"
	RoleReading Role = "READING"
	RoleWriting Role = "WRITING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	Operation     string
	Panels        int
	LastHeartbeat time.Time
}

// Status is a copy of the system status.
type Status struct {
	Role          Role
	Operation     string
	Panels        int
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the current role and operation.
func SetStatus(role Role, operation string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentRole = role
	globalStatus.Operation = operation
}

// SetPanels records how many side panels are connected.
func SetPanels(n int) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Panels = n
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() Status {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Status{
		Role:          globalStatus.CurrentRole,
		Operation:     globalStatus.Operation,
		Panels:        globalStatus.Panels,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
