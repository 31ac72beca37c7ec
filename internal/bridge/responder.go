// Package bridge connects panels, keyboard commands and chat commands to
// the table operations running against the page.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/rahul/steptable/internal/dom"
	"github.com/rahul/steptable/internal/governance"
	"github.com/rahul/steptable/internal/observability"
	"github.com/rahul/steptable/internal/store"
	"github.com/rahul/steptable/internal/table"
)

// ErrUnknownAction is returned for a Request naming no known action.
var ErrUnknownAction = errors.New("unknown action")

// DocumentSource yields the page the operations run against.
type DocumentSource interface {
	Document(ctx context.Context) (dom.Document, error)
}

// DocumentFunc adapts a function to DocumentSource.
type DocumentFunc func(ctx context.Context) (dom.Document, error)

func (f DocumentFunc) Document(ctx context.Context) (dom.Document, error) { return f(ctx) }

// StaticDocument serves the same document every time.
func StaticDocument(doc dom.Document) DocumentSource {
	return DocumentFunc(func(context.Context) (dom.Document, error) { return doc, nil })
}

type chatKey struct{}

// WithChat tags ctx with the chat a request came from, so the events it
// produces carry the chat id.
func WithChat(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatKey{}, chatID)
}

func chatFrom(ctx context.Context) string {
	id, _ := ctx.Value(chatKey{}).(string)
	return id
}

// OperationRecorder persists audited operations.
type OperationRecorder interface {
	RecordOperation(ctx context.Context, op store.Operation) error
}

// Responder answers page requests. Growing and filling never overlap: both
// click and type into the same table.
type Responder struct {
	Engine   *table.Engine
	Source   DocumentSource
	Policy   governance.PolicyEngine
	Logger   *observability.Logger
	Recorder OperationRecorder

	writeMu sync.Mutex
}

// Handle runs req on behalf of source ("panel", "cli", "telegram", ...).
// Operation failures are reported in the Response, never as a Go error.
func (r *Responder) Handle(ctx context.Context, source string, req Request) Response {
	if err := r.authorize(ctx, source, req); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	data, err := r.dispatch(ctx, source, req)
	if err != nil {
		log.Printf("bridge: %s from %s failed: %v", req.Action, source, err)
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

func (r *Responder) authorize(ctx context.Context, source string, req Request) error {
	if r.Policy == nil {
		return nil
	}
	res, err := r.Policy.Evaluate(ctx, governance.Request{
		Action:  req.Action,
		Payload: string(req.Data),
		Source:  source,
	})
	if err != nil {
		return err
	}
	if r.Logger != nil {
		r.Logger.LogPolicyCheck(source, req.Action, string(res.Effect), res.Reason)
	}
	if res.Effect == governance.EffectDeny {
		return fmt.Errorf("denied: %s", res.Reason)
	}
	return nil
}

func (r *Responder) dispatch(ctx context.Context, source string, req Request) (any, error) {
	switch req.Action {
	case ActionCheckTableRows, ActionGetTableInfo, ActionExtractTableData,
		ActionAddTableRows, ActionFillTableData:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	doc, err := r.Source.Document(ctx)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionCheckTableRows:
		defer r.busy(observability.RoleReading, req.Action)()
		rep, err := r.Engine.Check(ctx, doc)
		r.log(ctx, observability.EventTypeCheck, source, err == nil, rep)
		return rep, err

	case ActionGetTableInfo:
		info, err := r.Engine.Info(ctx, doc)
		r.log(ctx, observability.EventTypeInfo, source, err == nil, info)
		return info, err

	case ActionExtractTableData:
		defer r.busy(observability.RoleReading, req.Action)()
		records, err := r.Engine.Extract(ctx, doc)
		r.log(ctx, observability.EventTypeExtract, source, err == nil, map[string]int{"records": len(records)})
		return records, err

	case ActionAddTableRows:
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		defer r.busy(observability.RoleWriting, req.Action)()

		res, err := r.Engine.GrowTo(ctx, doc, req.TargetCount, req.Options.toTable())
		if errors.Is(err, table.ErrControlNotFound) {
			err = nil
		}
		r.log(ctx, observability.EventTypeGrow, source, err == nil && res.Success, res)
		r.record(ctx, source, req.Action, err == nil && res.Success,
			fmt.Sprintf("%d/%d rows, %d clicks", res.CurrentCount, res.TargetCount, res.Clicks))
		return res, err

	default: // ActionFillTableData
		var records []table.Record
		if len(req.Data) > 0 {
			var err error
			if records, err = table.ParseJSON(req.Data); err != nil {
				return nil, err
			}
		}

		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		defer r.busy(observability.RoleWriting, req.Action)()

		res, err := r.Engine.Fill(ctx, doc, records)
		if errors.Is(err, table.ErrInvalidInput) {
			err = nil
		}
		r.log(ctx, observability.EventTypeFill, source, err == nil && res.Success, res)
		r.record(ctx, source, req.Action, err == nil && res.Success,
			fmt.Sprintf("%d/%d filled, %d errors", res.Filled, res.Total, len(res.Errors)))
		return res, err
	}
}

func (r *Responder) busy(role observability.Role, action string) func() {
	observability.SetStatus(role, action)
	return func() { observability.SetStatus(observability.RoleIdle, "") }
}

func (r *Responder) log(ctx context.Context, typ observability.EventType, source string, ok bool, data any) {
	if r.Logger != nil {
		r.Logger.LogOperation(typ, source, chatFrom(ctx), ok, data)
	}
}

func (r *Responder) record(ctx context.Context, source, action string, ok bool, detail string) {
	if r.Recorder == nil {
		return
	}
	op := store.Operation{Action: action, Source: source, Success: ok, Detail: detail}
	if err := r.Recorder.RecordOperation(ctx, op); err != nil {
		log.Printf("bridge: record %s: %v", action, err)
	}
}

// Call is Handle for callers that hold typed arguments.
func (r *Responder) Call(ctx context.Context, source, action string, data any) Response {
	req := Request{Action: action}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Response{Success: false, Error: err.Error()}
		}
		req.Data = b
	}
	return r.Handle(ctx, source, req)
}
