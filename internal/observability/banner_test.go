package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusLine(t *testing.T) {
	beat := time.Date(2026, 3, 1, 9, 30, 5, 0, time.Local)
	now := startTime.Add(90 * time.Second)

	idle := statusLine(Status{Role: RoleIdle, LastHeartbeat: beat}, now, 0)
	assert.Contains(t, idle, "IDLE")
	assert.Contains(t, idle, "waiting")
	assert.Contains(t, idle, "no panels")
	assert.Contains(t, idle, "up 1m30s")
	assert.Contains(t, idle, "beat 09:30:05")

	busy := statusLine(Status{Role: RoleWriting, Operation: "fillTableData", Panels: 2, LastHeartbeat: beat}, now, 1)
	assert.Contains(t, busy, ansiMag+spinner[1])
	assert.Contains(t, busy, "fillTableData")
	assert.Contains(t, busy, "2 panels")

	long := statusLine(Status{Role: RoleReading, Operation: strings.Repeat("步", 40), Panels: 1}, now, 0)
	assert.Contains(t, long, strings.Repeat("步", maxOpWidth-1)+"…")
	assert.NotContains(t, long, strings.Repeat("步", maxOpWidth))
	assert.Contains(t, long, "1 panel |")
}
