package bridge

import (
	"encoding/json"
	"time"

	"github.com/rahul/steptable/internal/table"
)

// Actions understood by the Responder.
const (
	ActionCheckTableRows   = "checkTableRows"
	ActionAddTableRows     = "addTableRows"
	ActionExtractTableData = "extractTableData"
	ActionFillTableData    = "fillTableData"
	ActionGetTableInfo     = "getTableInfo"
)

// Request is a panel message addressed to the page.
type Request struct {
	Action      string          `json:"action"`
	TargetCount int             `json:"targetCount,omitempty"`
	Options     *GrowOptions    `json:"options,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Response is the reply to a Request. Data is set on success, Error
// otherwise.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GrowOptions are table.GrowOptions in milliseconds, as panels send them.
type GrowOptions struct {
	InitialWait        int `json:"initialWait,omitempty"`
	ClickInterval      int `json:"clickInterval,omitempty"`
	MaxWaitForResponse int `json:"maxWaitForResponse,omitempty"`
	RetryTimes         int `json:"retryTimes,omitempty"`
	PollInterval       int `json:"pollInterval,omitempty"`
}

func (o *GrowOptions) toTable() *table.GrowOptions {
	if o == nil {
		return nil
	}
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return &table.GrowOptions{
		InitialWait:        ms(o.InitialWait),
		ClickInterval:      ms(o.ClickInterval),
		MaxWaitForResponse: ms(o.MaxWaitForResponse),
		RetryTimes:         o.RetryTimes,
		PollInterval:       ms(o.PollInterval),
	}
}

// RuntimeMessage is a message from a panel to the bridge itself.
type RuntimeMessage struct {
	Type string `json:"type"`
}

// Runtime and port message types.
const (
	TypeDisableSidePanel = "disable-sidepanel"
	TypeCloseSidePanel   = "close-sidepanel"
	TypeSidePanelReady   = "sidepanel-ready"
)

// PortMessage travels over a panel's channel.
type PortMessage struct {
	Type     string `json:"type"`
	WindowID int    `json:"windowId,omitempty"`
}
