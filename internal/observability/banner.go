package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	ansiReset = "\033[0m"
	ansiCyan  = "\033[96m"
	ansiMag   = "\033[95m"
	ansiDim   = "\033[2m"

	// Rows 1-9 hold the banner, row 10 the status line, logs scroll from 12.
	statusRow = 10
	logRow    = 12

	maxOpWidth = 24
)

var (
	startTime = time.Now()
	spinner   = []string{"◐", "◓", "◑", "◒"}
)

// termMu serializes everything written to the terminal, so a log line can
// never land between the cursor save and restore of the status line.
var termMu sync.Mutex

type termWriter struct{}

func (termWriter) Write(p []byte) (int, error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns a writer for log.SetOutput and the event stream that
// shares the terminal with the status line.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

const bannerArt = `   _____ __             ______      __    __
  / ___// /____  ____  /_  __/___ _/ /_  / /__
  \__ \/ __/ _ \/ __ \  / / / __ '/ __ \/ / _ \
 ___/ / /_/  __/ /_/ / / / / /_/ / /_/ / /  __/
/____/\__/\___/ .___/ /_/  \__,_/_.___/_/\___/
             /_/
        test-case step table bridge`

// PrintBanner clears the screen and centers the banner.
func PrintBanner() {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
	}
	var b strings.Builder
	b.WriteString("\033[2J\033[H\n")
	for _, line := range strings.Split(bannerArt, "\n") {
		pad := max(0, (width-len([]rune(line)))/2)
		fmt.Fprintf(&b, "%s%s%s%s\n", strings.Repeat(" ", pad), ansiCyan, line, ansiReset)
	}
	fmt.Print(b.String())
}

// InitializeTerminal pins the banner and status line and scrolls logs below.
func InitializeTerminal() {
	fmt.Printf("\033[%d;r\033[%d;1H", logRow, logRow)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the status line in place.
func PrintLiveStatus() {
	line := statusLine(GetStatus(), time.Now(), int(time.Since(startTime)/time.Second))

	termMu.Lock()
	defer termMu.Unlock()
	fmt.Printf("\033[s\033[%d;1H\033[K%s\033[u", statusRow, line)
}

// statusLine renders what the bridge is doing: the table role and
// operation, the connected panels and how long the bridge has been up.
func statusLine(st Status, now time.Time, tick int) string {
	color, mark := ansiDim, "·"
	switch st.Role {
	case RoleReading:
		color, mark = ansiCyan, spinner[tick%len(spinner)]
	case RoleWriting:
		color, mark = ansiMag, spinner[tick%len(spinner)]
	}

	op := st.Operation
	if op == "" {
		op = "waiting"
	}
	if r := []rune(op); len(r) > maxOpWidth {
		op = string(r[:maxOpWidth-1]) + "…"
	}

	panels := "no panels"
	switch {
	case st.Panels == 1:
		panels = "1 panel"
	case st.Panels > 1:
		panels = fmt.Sprintf("%d panels", st.Panels)
	}

	return fmt.Sprintf("%s%s %-7s%s %-*s | %s | up %v | beat %s",
		color, mark, st.Role, ansiReset,
		maxOpWidth, op,
		panels,
		now.Sub(startTime).Round(time.Second),
		st.LastHeartbeat.Format("15:04:05"),
	)
}
