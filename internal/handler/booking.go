package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/envelope"
	"github.com/iliyamo/model-booking/internal/middleware"
)

// BookingHandler maps the REST booking routes onto envelope requests so the
// HTTP surface and the raw envelope endpoint share one code path.
type BookingHandler struct {
	Dispatcher *envelope.Dispatcher
}

func NewBookingHandler(d *envelope.Dispatcher) *BookingHandler {
	return &BookingHandler{Dispatcher: d}
}

// Submit: POST /v1/bookings
func (h *BookingHandler) Submit(c echo.Context) error {
	body, err := io.ReadAll(limitBody(c))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return middleware.WriteError(c, payloadTooLarge())
	case err != nil:
		return middleware.WriteError(c, apperror.Validation("invalid body", nil))
	}
	return h.dispatch(c, envelope.ActionSubmit, body)
}

// List: GET /v1/bookings?status=&model_id=&requester_id=&offset=&limit=
func (h *BookingHandler) List(c echo.Context) error {
	p := envelope.ListPayload{
		Status:      strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		ModelID:     c.QueryParam("model_id"),
		RequesterID: c.QueryParam("requester_id"),
	}
	var err error
	if p.Offset, err = queryInt(c, "offset"); err != nil {
		return middleware.WriteError(c, err)
	}
	if p.Limit, err = queryInt(c, "limit"); err != nil {
		return middleware.WriteError(c, err)
	}
	raw, _ := json.Marshal(p)
	return h.dispatch(c, envelope.ActionList, raw)
}

func (h *BookingHandler) Get(c echo.Context) error {
	return h.byID(c, envelope.ActionGet)
}

func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.byID(c, envelope.ActionConfirm)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.byID(c, envelope.ActionCancel)
}

func (h *BookingHandler) Complete(c echo.Context) error {
	return h.byID(c, envelope.ActionComplete)
}

// Envelope: POST /v1/envelope accepts {credential, action, payload} and
// answers {status, body}. A bearer header fills in a missing credential.
func (h *BookingHandler) Envelope(c echo.Context) error {
	var req envelope.Request
	c.Request().Body = limitBody(c)
	if err := c.Bind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return middleware.WriteError(c, payloadTooLarge())
		}
		return middleware.WriteError(c, apperror.Validation("invalid envelope", map[string]any{"error": err.Error()}))
	}
	if req.Credential == "" {
		req.Credential = middleware.BearerToken(c)
	}
	resp := h.Dispatcher.Dispatch(c.Request().Context(), req)
	return c.JSON(resp.HTTPStatus, resp)
}

func (h *BookingHandler) byID(c echo.Context, action envelope.Action) error {
	raw, _ := json.Marshal(envelope.IDPayload{ID: c.Param("id")})
	return h.dispatch(c, action, raw)
}

// dispatch writes the envelope body with the transport status. A confirm
// that lost its window answers 409 with the conflict view.
func (h *BookingHandler) dispatch(c echo.Context, action envelope.Action, payload []byte) error {
	resp := h.Dispatcher.Dispatch(c.Request().Context(), envelope.Request{
		Credential: middleware.BearerToken(c),
		Action:     action,
		Payload:    payload,
	})
	status := resp.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, resp.Body)
}

// maxBookingBody caps a booking or envelope request body. The server also
// installs echo's BodyLimit in front of every route.
const maxBookingBody = 64 << 10

func limitBody(c echo.Context) io.ReadCloser {
	return http.MaxBytesReader(c.Response(), c.Request().Body, maxBookingBody)
}

func payloadTooLarge() *apperror.AppError {
	return apperror.New("PAYLOAD_TOO_LARGE", "request body is too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"max_bytes": maxBookingBody})
}

func queryInt(c echo.Context, name string) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.Validation(name+" must be an integer", map[string]any{"field": name})
	}
	return n, nil
}
