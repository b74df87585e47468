package facility

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pretriage/pretriage/pkg/pagination"
)

// Handler exposes the read-only facility lookup.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/facilities", h.List)
}

// List returns facilities for a specialty, optionally distance-ordered when
// lat/lon are supplied.
func (h *Handler) List(c echo.Context) error {
	specialty := c.QueryParam("specialty")
	city := c.QueryParam("city")

	var lat, lon *float64
	if v := c.QueryParam("lat"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lat")
		}
		lat = &f
	}
	if v := c.QueryParam("lon"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lon")
		}
		lon = &f
	}
	if (lat == nil) != (lon == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lon must be supplied together")
	}

	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, h.svc.Find(specialty, city, lat, lon, pg.Limit))
}
