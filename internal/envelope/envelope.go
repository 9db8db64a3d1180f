// Package envelope is the inbound boundary of the booking core. A caller
// hands over {credential, action, payload} and always gets back
// {status, body}: the credential is validated, the payload decoded and
// checked, and the booking manager's result or error is folded into one of
// a small set of statuses.
package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/session"
	"github.com/iliyamo/model-booking/internal/validation"
)

type Action string

const (
	ActionSubmit   Action = "booking.submit"
	ActionConfirm  Action = "booking.confirm"
	ActionCancel   Action = "booking.cancel"
	ActionComplete Action = "booking.complete"
	ActionGet      Action = "booking.get"
	ActionList     Action = "booking.list"
)

type Status string

const (
	StatusOK           Status = "OK"
	StatusConflict     Status = "CONFLICT"
	StatusForbidden    Status = "FORBIDDEN"
	StatusNotFound     Status = "NOT_FOUND"
	StatusInvalid      Status = "INVALID"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusUnavailable  Status = "UNAVAILABLE"
)

// Request is one inbound operation. An empty Credential acts as a guest.
type Request struct {
	Credential string          `json:"credential,omitempty"`
	Action     Action          `json:"action"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Response carries the outcome. HTTPStatus is a hint for HTTP transports.
type Response struct {
	Status     Status `json:"status"`
	Body       any    `json:"body,omitempty"`
	HTTPStatus int    `json:"-"`
}

// Bookings is the part of *booking.Manager the envelope drives.
type Bookings interface {
	Submit(ctx context.Context, actor access.Subject, req booking.SubmitRequest) (model.Booking, error)
	Confirm(ctx context.Context, actor access.Subject, id string) (booking.ConfirmResult, error)
	Cancel(ctx context.Context, actor access.Subject, id string) (model.Booking, error)
	Complete(ctx context.Context, actor access.Subject, id string) (model.Booking, error)
	Get(ctx context.Context, actor access.Subject, id string) (model.Booking, error)
	List(ctx context.Context, actor access.Subject, f model.BookingFilter) ([]model.Booking, error)
}

type Sessions interface {
	Validate(ctx context.Context, credential string) (session.Session, error)
}

type Dispatcher struct {
	sessions Sessions
	bookings Bookings
	validate *validation.Validator
	log      *logger.Logger
}

func NewDispatcher(sessions Sessions, bookings Bookings, v *validation.Validator, log *logger.Logger) *Dispatcher {
	if v == nil {
		v = validation.New()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{sessions: sessions, bookings: bookings, validate: v, log: log.With("component", "envelope")}
}

// Payloads

type SubmitPayload struct {
	ModelID     string    `json:"model_id" validate:"required"`
	RequesterID string    `json:"requester_id,omitempty"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
	QuotedPrice int64     `json:"quoted_price" validate:"gt=0"`
	Notes       string    `json:"notes,omitempty" validate:"max=500"`
}

type IDPayload struct {
	ID string `json:"id" validate:"required"`
}

type ListPayload struct {
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=REQUESTED CONFIRMED CANCELLED COMPLETED"`
	ModelID     string `json:"model_id,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
	Offset      int    `json:"offset" validate:"gte=0"`
	Limit       int    `json:"limit" validate:"gte=0,lte=100"`
}

// Dispatch runs req and never returns an error: every failure becomes a
// status with an error body.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	actor := access.Guest
	if req.Credential != "" {
		sess, err := d.sessions.Validate(ctx, req.Credential)
		if err != nil {
			return failure(err)
		}
		actor = access.Subject{ID: sess.SubjectID, Role: sess.Role}
	}

	resp, err := d.run(ctx, actor, req)
	if err != nil {
		appErr := apperror.AsAppError(err)
		if appErr.Code == apperror.CodeInternal || appErr.Code == apperror.CodeStoreUnavailable {
			d.log.Error("operation failed", "action", string(req.Action), "subject_id", actor.ID, "error", err)
		}
		return failure(appErr)
	}
	return resp
}

func (d *Dispatcher) run(ctx context.Context, actor access.Subject, req Request) (Response, error) {
	switch req.Action {
	case ActionSubmit:
		var p SubmitPayload
		if err := d.decode(req.Payload, &p); err != nil {
			return Response{}, err
		}
		b, err := d.bookings.Submit(ctx, actor, booking.SubmitRequest{
			ModelID:     p.ModelID,
			RequesterID: p.RequesterID,
			Start:       p.Start,
			End:         p.End,
			QuotedPrice: p.QuotedPrice,
			Notes:       p.Notes,
		})
		if err != nil {
			return Response{}, err
		}
		return Response{Status: StatusOK, Body: NewBookingView(b), HTTPStatus: http.StatusCreated}, nil

	case ActionConfirm:
		var p IDPayload
		if err := d.decode(req.Payload, &p); err != nil {
			return Response{}, err
		}
		res, err := d.bookings.Confirm(ctx, actor, p.ID)
		if err != nil {
			return Response{}, err
		}
		if res.Outcome == booking.OutcomeConflict {
			return Response{Status: StatusConflict, Body: NewConflictView(res), HTTPStatus: http.StatusConflict}, nil
		}
		return ok(NewBookingView(res.Booking)), nil

	case ActionCancel, ActionComplete, ActionGet:
		var p IDPayload
		if err := d.decode(req.Payload, &p); err != nil {
			return Response{}, err
		}
		op := d.bookings.Get
		switch req.Action {
		case ActionCancel:
			op = d.bookings.Cancel
		case ActionComplete:
			op = d.bookings.Complete
		}
		b, err := op(ctx, actor, p.ID)
		if err != nil {
			return Response{}, err
		}
		return ok(NewBookingView(b)), nil

	case ActionList:
		var p ListPayload
		if err := d.decode(req.Payload, &p); err != nil {
			return Response{}, err
		}
		items, err := d.bookings.List(ctx, actor, model.BookingFilter{
			RequesterID: p.RequesterID,
			ModelID:     p.ModelID,
			Status:      model.BookingStatus(p.Status),
			Offset:      p.Offset,
			Limit:       p.Limit,
		})
		if err != nil {
			return Response{}, err
		}
		views := make([]BookingView, 0, len(items))
		for _, b := range items {
			views = append(views, NewBookingView(b))
		}
		return ok(ListView{Items: views, Count: len(views)}), nil
	}
	return Response{}, apperror.Validation("unknown action", map[string]any{"action": string(req.Action)})
}

// decode reads a JSON payload strictly and validates it. An absent payload
// decodes as the zero value.
func (d *Dispatcher) decode(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return apperror.Validation("payload is not valid JSON for this action", map[string]any{"error": err.Error()})
		}
	}
	return d.validate.Validate(dst)
}

func ok(body any) Response {
	return Response{Status: StatusOK, Body: body, HTTPStatus: http.StatusOK}
}

func failure(err error) Response {
	appErr := apperror.AsAppError(err)
	return Response{Status: StatusFor(appErr), Body: appErr.Response(), HTTPStatus: appErr.StatusCode()}
}

// StatusFor folds an error code into an envelope status.
func StatusFor(err error) Status {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return StatusUnavailable
	}
	switch appErr.Code {
	case apperror.CodeConflict:
		return StatusConflict
	case apperror.CodeForbidden:
		return StatusForbidden
	case apperror.CodeNotFound:
		return StatusNotFound
	case apperror.CodeValidation, apperror.CodeInvalidTransition, apperror.CodeEntityUnavailable:
		return StatusInvalid
	case apperror.CodeAuthExpired, apperror.CodeAuthMalformed, apperror.CodeAuthRevoked:
		return StatusUnauthorized
	default:
		return StatusUnavailable
	}
}
