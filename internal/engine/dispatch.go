package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/events"
	"github.com/otto-ai/otto/internal/tools"
)

// Dispatch routes one request: emits Requested, resolves the
// implementation by (source, name), invokes it with progress wiring, and
// emits exactly one Finished whatever the outcome. Timing wraps the
// implementation call only.
func (e *Engine) Dispatch(ctx context.Context, req tools.Request) *tools.Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := e.startDispatchSpan(ctx, req)

	e.bus.Publish(ctx, events.Requested{
		RequestID:  req.ID,
		ToolName:   req.ToolName,
		Source:     req.Source,
		Parameters: req.Parameters,
		CallerID:   req.CallerID,
		Timestamp:  time.Now(),
	})

	var res *tools.Result
	tool, resolveErr := e.registry.Resolve(req.Source, req.ToolName)
	if resolveErr != nil {
		now := time.Now()
		res = tools.NewErrorResult(resolveErr)
		res.StartTime = now
		res.EndTime = now
		e.logger.Warn("tool not found",
			"tool", req.ToolName, "source", req.Source.String(), "request", req.ID)
	} else {
		res = e.invoke(ctx, tool, req)
	}

	res.RequestID = req.ID
	res.ToolName = req.ToolName

	e.stats.recordDispatch(req.ToolName, res)
	endDispatchSpan(span, res)

	e.bus.Publish(ctx, events.Finished{
		RequestID:  req.ID,
		ToolName:   req.ToolName,
		Success:    res.Success,
		DurationMs: res.DurationMs,
		Error:      res.Error,
		Files:      res.Files,
		Timestamp:  time.Now(),
	})

	return res
}

// invoke runs the implementation with timing and panic containment. A
// panicking tool becomes an ordinary failed result at this boundary.
func (e *Engine) invoke(ctx context.Context, tool tools.Tool, req tools.Request) (res *tools.Result) {
	call := tools.NewCall(req.ID, req.CallerID, req.Parameters,
		func(current, total int, message string) {
			e.bus.Publish(ctx, events.Progress{
				RequestID: req.ID,
				Current:   current,
				Total:     total,
				Message:   message,
				Timestamp: time.Now(),
			})
		})

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = tools.NewErrorResult(errors.Permanent(
				errors.CodeToolExecutionFailed,
				fmt.Sprintf("tool panicked: %v", r)))
			stampTiming(res, start)
			e.logger.Error("tool implementation panicked",
				"tool", req.ToolName, "request", req.ID, "panic", r)
		}
	}()

	out, err := tool.Execute(ctx, call)
	switch {
	case err != nil:
		res = tools.NewErrorResult(err)
	case out == nil:
		res = tools.NewErrorResult(errors.Permanent(
			errors.CodeToolExecutionFailed, "tool returned no result"))
	default:
		res = out
		if !res.Success && res.Error == nil {
			res.Error = &tools.ErrorInfo{
				Code:    errors.CodeToolExecutionFailed,
				Message: "tool reported failure",
			}
		}
	}

	stampTiming(res, start)
	return res
}

func stampTiming(res *tools.Result, start time.Time) {
	res.StartTime = start
	res.EndTime = time.Now()
	res.DurationMs = res.EndTime.Sub(start).Milliseconds()
}
