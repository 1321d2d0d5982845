package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/enrichment"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
)

// ErrSeriesNotFound is returned when a series ID is unknown
var ErrSeriesNotFound = fiber.NewError(fiber.StatusNotFound, "series not found")

// ErrMatchNotFound is returned when a match ID is unknown
var ErrMatchNotFound = fiber.NewError(fiber.StatusNotFound, "match not found")

// ErrTargetSeriesRequired is returned when a reassignment omits the target
var ErrTargetSeriesRequired = fiber.NewError(fiber.StatusBadRequest, "target_series_id is required")

type handlers struct {
	store    *store.Store
	enricher enrichment.Service
	log      logrus.FieldLogger
}

func newHandlers(st *store.Store, enricher enrichment.Service, log logrus.FieldLogger) *handlers {
	return &handlers{
		store:    st,
		enricher: enricher,
		log:      log.WithField("component", "api.handlers"),
	}
}

func (h *handlers) register(router fiber.Router) {
	router.Get("/series", h.listSeries)
	router.Get("/series/:id", h.getSeries)
	router.Get("/enrichment/tasks", h.listTasks)
	router.Post("/matches/:id/reassign", h.reassignMatch)
}

// seriesDetailResponse is one series plus its attached match records
type seriesDetailResponse struct {
	Series  *series.Series       `json:"series"`
	Matches []*store.MatchRecord `json:"matches"`
}

// tasksResponse reports enrichment bookkeeping and current queue depth
type tasksResponse struct {
	QueueDepth int                 `json:"queue_depth"`
	Pending    []*store.TaskRecord `json:"pending"`
}

// reassignRequest is the body of a match reassignment
type reassignRequest struct {
	TargetSeriesID string `json:"target_series_id"`
}

func (h *handlers) listSeries(c fiber.Ctx) error {
	list := h.store.ListSeries()

	if status := c.Query("status"); status != "" {
		filtered := make([]*series.Series, 0, len(list))
		for _, sr := range list {
			if string(sr.Status) == status {
				filtered = append(filtered, sr)
			}
		}
		list = filtered
	}

	return c.JSON(fiber.Map{
		"series": list,
		"count":  len(list),
	})
}

func (h *handlers) getSeries(c fiber.Ctx) error {
	sr, err := h.store.GetSeries(c.Params("id"))
	if err != nil {
		return ErrSeriesNotFound
	}

	matches := make([]*store.MatchRecord, 0, len(sr.MatchIDs))
	for _, matchID := range sr.MatchIDs {
		if m, getErr := h.store.GetMatch(matchID); getErr == nil {
			matches = append(matches, m)
		}
	}

	return c.JSON(seriesDetailResponse{
		Series:  sr,
		Matches: matches,
	})
}

func (h *handlers) listTasks(c fiber.Ctx) error {
	depth, err := h.enricher.QueueDepth()
	if err != nil {
		h.log.WithError(err).Warn("Failed to read queue depth")
	}

	return c.JSON(tasksResponse{
		QueueDepth: depth,
		Pending:    h.store.PendingTasks(),
	})
}

func (h *handlers) reassignMatch(c fiber.Ctx) error {
	matchID := c.Params("id")

	var req reassignRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.TargetSeriesID == "" {
		return ErrTargetSeriesRequired
	}

	err := h.store.ReassignMatch(matchID, req.TargetSeriesID)

	switch {
	case err == nil:
	case errors.Is(err, store.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, store.ErrSeriesNotFound):
		return ErrSeriesNotFound
	case errors.Is(err, store.ErrSameSeries):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}

	h.log.WithFields(logrus.Fields{
		"match_id":      matchID,
		"target_series": req.TargetSeriesID,
	}).Info("Match reassigned via API")

	sr, err := h.store.GetSeries(req.TargetSeriesID)
	if err != nil {
		return ErrSeriesNotFound
	}

	return c.JSON(fiber.Map{"series": sr})
}
