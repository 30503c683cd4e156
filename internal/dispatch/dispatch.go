// Package dispatch maps a decoded OCPP Call to its response-construction
// logic: admission at BootNotification, the handful of actions the server
// actually answers, and NotSupported synthesis for everything else.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ocpp-central/station/internal/allowlist"
	"github.com/ocpp-central/station/internal/codec"
	"github.com/ocpp-central/station/internal/events"
	"github.com/ocpp-central/station/internal/metrics"
	"github.com/ocpp-central/station/internal/ocpp"
	"github.com/rs/zerolog"
)

// Outcome is the dispatcher's verdict for one inbound message: zero or more
// frames to enqueue, in order, and whether the session should close after
// enqueuing them.
type Outcome struct {
	Frames [][]byte
	Close  bool
}

// Dispatcher holds the allow-list and the logger every handler needs. It has
// no per-session mutable state; a single Dispatcher is shared by all
// sessions, matching the "no shared mutable state across sessions except the
// immutable allow-list" rule of §5.
type Dispatcher struct {
	AllowList allowlist.Store
	Events    events.Publisher
	Log       zerolog.Logger
}

// New builds a Dispatcher over store, logging through log. A nil publisher
// is replaced with events.NopPublisher so callers need not special-case it.
func New(store allowlist.Store, publisher events.Publisher, log zerolog.Logger) *Dispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Dispatcher{AllowList: store, Events: publisher, Log: log}
}

// HandleCall is the dispatcher's sole entry point for inbound Call frames.
// rawAction is the unparsed action string straight off the wire so an
// unknown action can still be echoed in the NotSupported reply.
// stationID identifies the session for logging and event publication.
func (d *Dispatcher) HandleCall(stationID, messageID, rawAction string, rawPayload json.RawMessage) Outcome {
	action, ok := ocpp.ParseAction(rawAction)
	if !ok {
		metrics.DecodeErrors.WithLabelValues(string(codec.NotSupported)).Inc()
		return d.notSupportedUnknown(messageID, rawAction)
	}

	start := time.Now()
	outcome := d.dispatchAction(stationID, messageID, action, rawPayload)
	metrics.DispatchDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	metrics.ActionsDispatched.WithLabelValues(string(action), outcomeLabel(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) dispatchAction(stationID, messageID string, action ocpp.Action, rawPayload json.RawMessage) Outcome {
	switch action {
	case ocpp.ActionAuthorize:
		return d.handleAuthorize(messageID)
	case ocpp.ActionBootNotification:
		return d.handleBootNotification(stationID, messageID, rawPayload)
	case ocpp.ActionHeartbeat:
		return d.handleHeartbeat(messageID)
	case ocpp.ActionDataTransfer:
		return d.handleDataTransfer(messageID, rawPayload)
	case ocpp.ActionStopTransaction:
		return d.handleStopTransaction(messageID, rawPayload)
	case ocpp.ActionStatusNotification:
		return d.handleStatusNotification(messageID, rawPayload)
	default:
		return d.notSupportedImplemented(messageID, action)
	}
}

func outcomeLabel(o Outcome) string {
	switch {
	case o.Close:
		return "closed"
	case len(o.Frames) == 0:
		return "no_reply"
	default:
		return "reply"
	}
}

// HandleCallResult is best-effort observability only; the server never
// replies to a CallResult.
func (d *Dispatcher) HandleCallResult(messageID string, _ json.RawMessage) Outcome {
	d.Log.Debug().Str("messageId", messageID).Msg("received CallResult")
	return Outcome{}
}

// HandleCallError is log-only; the server never replies to a CallError.
func (d *Dispatcher) HandleCallError(messageID, code, description string) Outcome {
	d.Log.Warn().Str("messageId", messageID).Str("errorCode", code).Str("errorDescription", description).Msg("received CallError")
	return Outcome{}
}

// HandleDecodeError turns a codec.DecodeError into the reply (if any) that
// §7 prescribes for its kind.
func (d *Dispatcher) HandleDecodeError(err *codec.DecodeError) Outcome {
	metrics.DecodeErrors.WithLabelValues(string(err.Kind)).Inc()
	switch err.Kind {
	case codec.FramingError:
		d.Log.Warn().Err(err).Msg("unparseable frame")
		return Outcome{}
	case codec.FormationViolation:
		d.Log.Warn().Err(err).Str("action", err.Action).Msg("payload did not match expected shape")
		return Outcome{}
	case codec.ProtocolError:
		if err.MessageID == "" {
			d.Log.Warn().Err(err).Msg("protocol error with no recoverable message id")
			return Outcome{}
		}
		details := err.Details
		if details == nil {
			details = map[string]interface{}{}
		}
		description := string(err.Kind)
		if err.Cause != nil {
			description = err.Cause.Error()
		}
		frame, encErr := codec.EncodeCallError(err.MessageID, "ProtocolError", description, details)
		if encErr != nil {
			d.Log.Error().Err(encErr).Msg("failed to encode ProtocolError reply")
			return Outcome{}
		}
		return Outcome{Frames: [][]byte{frame}}
	case codec.NotSupported:
		return d.notSupportedUnknown(err.MessageID, err.Action)
	default:
		d.Log.Warn().Err(err).Msg("unhandled decode error kind")
		return Outcome{}
	}
}

func (d *Dispatcher) handleAuthorize(messageID string) Outcome {
	resp := ocpp.AuthorizeResponse{
		IdTagInfo: ocpp.IdTagInfo{Status: ocpp.AuthorizationStatusAccepted},
	}
	return d.reply(messageID, resp)
}

func (d *Dispatcher) handleBootNotification(stationID, messageID string, raw json.RawMessage) Outcome {
	payload, decErr := codec.DecodeRequestPayload(ocpp.ActionBootNotification, raw)
	if decErr != nil {
		d.Log.Warn().Err(decErr).Msg("BootNotification payload malformed")
		return Outcome{}
	}
	req := payload.(*ocpp.BootNotificationRequest)

	serial := ""
	if req.ChargePointSerialNumber != nil {
		serial = *req.ChargePointSerialNumber
	}
	if !d.AllowList.Allowed(serial) {
		d.Log.Warn().Str("messageId", messageID).Msg("BootNotification rejected: serial not in allow-list")
		metrics.BootNotificationsRejected.Inc()
		d.Events.Publish(events.Event{
			Kind:      events.KindBootNotificationRejected,
			StationID: stationID,
			Timestamp: time.Now().UTC(),
			Detail:    map[string]interface{}{"serial": serial},
		})
		return Outcome{Close: true}
	}

	d.Events.Publish(events.Event{
		Kind:      events.KindBootNotificationAccepted,
		StationID: stationID,
		Timestamp: time.Now().UTC(),
		Detail:    map[string]interface{}{"serial": serial, "vendor": req.ChargePointVendor, "model": req.ChargePointModel},
	})

	resp := ocpp.BootNotificationResponse{
		Status:      ocpp.RegistrationStatusAccepted,
		CurrentTime: ocpp.DateTime{Time: time.Now().UTC()},
		Interval:    300,
	}
	return d.reply(messageID, resp)
}

func (d *Dispatcher) handleHeartbeat(messageID string) Outcome {
	// Heartbeat always replies, even if the request body doesn't parse —
	// it is pure liveness and must never error.
	resp := ocpp.HeartbeatResponse{CurrentTime: ocpp.DateTime{Time: time.Now().UTC()}}
	return d.reply(messageID, resp)
}

func (d *Dispatcher) handleDataTransfer(messageID string, raw json.RawMessage) Outcome {
	if _, decErr := codec.DecodeRequestPayload(ocpp.ActionDataTransfer, raw); decErr != nil {
		d.Log.Warn().Err(decErr).Msg("DataTransfer payload malformed")
		return Outcome{}
	}
	resp := ocpp.DataTransferResponse{
		Status: ocpp.DataTransferStatusAccepted,
		Data:   "Data Transfer Accepted",
	}
	return d.reply(messageID, resp)
}

func (d *Dispatcher) handleStopTransaction(messageID string, raw json.RawMessage) Outcome {
	if _, decErr := codec.DecodeRequestPayload(ocpp.ActionStopTransaction, raw); decErr != nil {
		d.Log.Warn().Err(decErr).Msg("StopTransaction payload malformed")
		return Outcome{}
	}
	resp := ocpp.StopTransactionResponse{
		IdTagInfo: &ocpp.IdTagInfo{Status: ocpp.AuthorizationStatusAccepted},
	}
	return d.reply(messageID, resp)
}

func (d *Dispatcher) handleStatusNotification(messageID string, raw json.RawMessage) Outcome {
	if _, decErr := codec.DecodeRequestPayload(ocpp.ActionStatusNotification, raw); decErr != nil {
		d.Log.Warn().Err(decErr).Str("messageId", messageID).Msg("StatusNotification payload malformed")
	} else {
		d.Log.Info().Str("messageId", messageID).Msg("StatusNotification received")
	}
	// Observational: no reply. See the open question in the design notes —
	// OCPP 1.6-J technically mandates an empty CallResult here.
	return Outcome{}
}

func (d *Dispatcher) notSupportedImplemented(messageID string, action ocpp.Action) Outcome {
	details := map[string]interface{}{"action": string(action)}
	frame, err := codec.EncodeCallError(messageID, "NotSupported", fmt.Sprintf("Action %s not implemented", action), details)
	if err != nil {
		d.Log.Error().Err(err).Msg("failed to encode NotSupported reply")
		return Outcome{}
	}
	return Outcome{Frames: [][]byte{frame}}
}

func (d *Dispatcher) notSupportedUnknown(messageID, rawAction string) Outcome {
	if messageID == "" {
		d.Log.Warn().Str("action", rawAction).Msg("unknown action with no recoverable message id")
		return Outcome{}
	}
	details := map[string]interface{}{"action": rawAction, "reason": "unknown action"}
	desc := fmt.Sprintf("Unknown action: %s", rawAction)
	frame, err := codec.EncodeCallError(messageID, "NotSupported", desc, details)
	if err != nil {
		d.Log.Error().Err(err).Msg("failed to encode NotSupported reply")
		return Outcome{}
	}
	return Outcome{Frames: [][]byte{frame}}
}

func (d *Dispatcher) reply(messageID string, payload interface{}) Outcome {
	frame, err := codec.EncodeCallResult(messageID, payload)
	if err != nil {
		d.Log.Error().Err(err).Msg("failed to encode CallResult reply")
		return Outcome{}
	}
	return Outcome{Frames: [][]byte{frame}}
}
