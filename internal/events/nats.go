package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/pkg/protocol"
)

const defaultSubjectPrefix = "otto"

// publisher is the slice of the NATS connection the bridge publishes
// through.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Bridge republishes bus events as JSON frames on NATS subjects so
// sibling processes (UIs, dashboards) observe tool execution without
// linking the engine. A nil Bridge is valid and does nothing, which is
// what a disabled config produces.
type Bridge struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
	logger *log.Logger
	detach func()
}

// OpenBridge connects to the configured NATS endpoint. A disabled config
// returns (nil, nil).
func OpenBridge(cfg config.NATSConfig, logger *log.Logger) (*Bridge, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	lg := logging.Or(logger)

	conn, err := nats.Connect(cfg.URL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			lg.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.NewBuilder(errors.CodeEventBridgeFailed,
			fmt.Sprintf("connect to nats at %s failed", cfg.URL)).
			Temporary().
			Wrap(err).
			Build()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &Bridge{conn: conn, pub: conn, prefix: prefix, logger: lg}, nil
}

// Attach subscribes the bridge to the bus. Publish failures are logged by
// the bus and never abort the dispatch that produced the event.
func (b *Bridge) Attach(bus *Bus) {
	if b == nil || b.detach != nil {
		return
	}
	b.detach = bus.Subscribe(b.republish)
}

// Close detaches from the bus and shuts the connection down, flushing
// buffered frames first.
func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	if b.detach != nil {
		b.detach()
		b.detach = nil
	}
	if b.conn == nil {
		return nil
	}
	err := b.conn.Flush()
	b.conn.Close()
	b.conn = nil
	return err
}

func (b *Bridge) republish(_ context.Context, ev Event) error {
	suffix, frame, ok := frameFor(ev)
	if !ok {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", ev.Kind(), err)
	}
	return b.pub.Publish(b.prefix+"."+suffix, data)
}

// frameFor maps a bus event onto its wire frame and subject suffix.
func frameFor(ev Event) (suffix string, frame any, ok bool) {
	switch e := ev.(type) {
	case Requested:
		return protocol.SubjectToolRequested, protocol.ToolRequested{
			RequestID:  e.RequestID,
			Tool:       e.ToolName,
			Source:     e.Source.String(),
			Caller:     e.CallerID,
			Parameters: e.Parameters,
			Timestamp:  e.Timestamp,
		}, true
	case Progress:
		return protocol.SubjectToolProgress, protocol.ToolProgress{
			RequestID: e.RequestID,
			Current:   e.Current,
			Total:     e.Total,
			Message:   e.Message,
			Timestamp: e.Timestamp,
		}, true
	case Finished:
		fr := protocol.ToolFinished{
			RequestID:  e.RequestID,
			Tool:       e.ToolName,
			Success:    e.Success,
			DurationMs: e.DurationMs,
			Timestamp:  e.Timestamp,
		}
		if e.Error != nil {
			fr.Error = &protocol.ToolError{Code: e.Error.Code, Message: e.Error.Message}
		}
		for _, f := range e.Files {
			fr.Files = append(fr.Files, protocol.FileRef{
				Path:     f.Path,
				MimeType: f.MimeType,
				Label:    f.Label,
			})
		}
		return protocol.SubjectToolFinished, fr, true
	default:
		return "", nil, false
	}
}
