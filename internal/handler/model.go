package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/catalog"
	"github.com/iliyamo/model-booking/internal/middleware"
	"github.com/iliyamo/model-booking/internal/model"
)

// ModelHandler serves the catalog. Reads are open to guests; writes sit
// behind RequireAction(ManageCatalog) in the router and are checked again
// by the service.
type ModelHandler struct {
	Catalog *catalog.Service
}

func NewModelHandler(s *catalog.Service) *ModelHandler {
	return &ModelHandler{Catalog: s}
}

type modelView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PricePerHour int64     `json:"price_per_hour"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toModelView(m model.Model) modelView {
	return modelView{
		ID:           m.ID,
		Name:         m.Name,
		PricePerHour: m.PricePerHour,
		IsAvailable:  m.IsAvailable,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// List: GET /v1/models?offset=&limit=
func (h *ModelHandler) List(c echo.Context) error {
	offset, err := queryInt(c, "offset")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return middleware.WriteError(c, err)
	}
	items, err := h.Catalog.List(c.Request().Context(), middleware.SubjectFrom(c), offset, limit)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	out := make([]modelView, 0, len(items))
	for _, m := range items {
		out = append(out, toModelView(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *ModelHandler) Get(c echo.Context) error {
	m, err := h.Catalog.Get(c.Request().Context(), middleware.SubjectFrom(c), c.Param("id"))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusOK, toModelView(m))
}

func (h *ModelHandler) Create(c echo.Context) error {
	var in catalog.CreateInput
	if err := bind(c, &in); err != nil {
		return middleware.WriteError(c, err)
	}
	m, err := h.Catalog.Create(c.Request().Context(), middleware.SubjectFrom(c), in)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusCreated, toModelView(m))
}

// Update applies a partial update (PATCH semantics).
func (h *ModelHandler) Update(c echo.Context) error {
	var in catalog.UpdateInput
	if err := bind(c, &in); err != nil {
		return middleware.WriteError(c, err)
	}
	m, err := h.Catalog.Update(c.Request().Context(), middleware.SubjectFrom(c), c.Param("id"), in)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusOK, toModelView(m))
}

func (h *ModelHandler) Delete(c echo.Context) error {
	if err := h.Catalog.Delete(c.Request().Context(), middleware.SubjectFrom(c), c.Param("id")); err != nil {
		return middleware.WriteError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
