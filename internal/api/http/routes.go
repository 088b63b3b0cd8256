package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/croptrace/soil-analysis/internal/soil"
	"github.com/croptrace/soil-analysis/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *soil.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/soil/analysis", func(c *fiber.Ctx) error {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.AnalyzeAndStore(c.Context(), q.Lat, q.Lon)
		if err != nil {
			// The analysis itself degraded gracefully; only persisting
			// failed. Serve the result anyway.
			zap.L().Warn("analysis served without persistence", zap.Error(err))
		}
		return c.JSON(result)
	})

	v1.Get("/soil/latest", func(c *fiber.Ctx) error {
		q, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.GetLatest(c.Context(), q.toCoordinate())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no analysis for requested coordinate")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch analysis")
		}

		return c.JSON(result)
	})

	v1.Get("/soil/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		coord := req.Coordinate.toCoordinate()
		results, err := service.GetRange(c.Context(), coord, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no analysis history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch analysis history")
		}

		return c.JSON(fiber.Map{
			"coordinate": coord,
			"from":       req.From,
			"to":         req.To,
			"results":    results,
		})
	})
}

// coordinateQuery holds query parameters identifying a point.
type coordinateQuery struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

func (q coordinateQuery) toCoordinate() soil.Coordinate {
	return soil.Coordinate{
		Latitude:  q.Lat,
		Longitude: q.Lon,
	}
}

func parseCoordinateQuery(c *fiber.Ctx) (coordinateQuery, error) {
	var q coordinateQuery

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return q, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return q, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return q, errors.New("lon must be a number")
	}

	q.Lat = lat
	q.Lon = lon

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Coordinate coordinateQuery
	From       time.Time `validate:"required"`
	To         time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	q, err := parseCoordinateQuery(c)
	if err != nil {
		return err
	}
	h.Coordinate = q

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
