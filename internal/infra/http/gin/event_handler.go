package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mapin/internal/app/dto"
	"mapin/internal/domain/event"
	"mapin/internal/domain/geo"
	"mapin/internal/infra/obs"
)

// EventHTTP exposes map event endpoints.
type EventHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Join(c *gin.Context)
	Leave(c *gin.Context)
	Route(c *gin.Context)
}

type EventHandler struct {
	Store  event.Store
	Events event.EventSink
	Logger *slog.Logger
}

func (h EventHandler) Create(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ev := event.Event{
		ID:             uuid.NewString(),
		OwnerID:        p.ID,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Location:       event.Location{Lat: req.Location.Lat, Lon: req.Location.Lon},
		Tags:           req.Tags,
		Capacity:       req.Capacity,
		ParticipantIDs: []string{p.ID},
		StartsAt:       req.StartsAt,
		CreatedAt:      time.Now().UTC(),
	}
	if err := ev.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Store.CreateEvent(c.Request.Context(), ev); err != nil {
		h.logError("create event failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create event"})
		return
	}
	obs.EventsCreated.Inc()
	c.JSON(http.StatusCreated, eventDTO(ev))
}

// List returns every event with its pin category and capacity state resolved,
// ready for map rendering.
func (h EventHandler) List(c *gin.Context) {
	events, err := h.Store.ListEvents(c.Request.Context())
	if err != nil {
		h.logError("list events failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list events"})
		return
	}
	collection := dto.EventList{Items: make([]dto.Event, 0, len(events))}
	for _, ev := range events {
		collection.Items = append(collection.Items, eventDTO(ev))
	}
	c.JSON(http.StatusOK, collection)
}

func (h EventHandler) Get(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eventDTO(*ev))
}

func (h EventHandler) Join(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id is required"})
		return
	}
	if err := h.Store.JoinEvent(c.Request.Context(), id, p.ID); err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, event.ErrFull):
			c.JSON(http.StatusConflict, gin.H{"error": "event is full"})
		default:
			h.logError("join event failed", err, "event_id", id, "user_id", p.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot join event"})
		}
		return
	}
	if h.Events != nil {
		err := h.Events.Emit(c.Request.Context(), "event.participant_joined", id, map[string]any{
			"event_id": id,
			"user_id":  p.ID,
		})
		if err != nil {
			// the join is durable; failing the request makes the client retry
			// the idempotent join and re-append the record
			h.logError("join event emit failed", err, "event_id", id, "user_id", p.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot join event"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h EventHandler) Leave(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id is required"})
		return
	}
	if err := h.Store.LeaveEvent(c.Request.Context(), id, p.ID); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("leave event failed", err, "event_id", id, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot leave event"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Route formats the straight-line distance and walking time from the caller's
// position (lat/lon query params) to the event.
func (h EventHandler) Route(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}
	info := geo.Route(lat, lon, ev.Location.Lat, ev.Location.Lon)
	c.JSON(http.StatusOK, dto.RouteResponse{
		DistanceMeters:  info.DistanceMeters,
		DurationSeconds: info.DurationSeconds,
		Distance:        info.Distance,
		Duration:        info.Duration,
	})
}

func (h EventHandler) loadEvent(c *gin.Context) (*event.Event, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id is required"})
		return nil, false
	}
	ev, err := h.Store.EventByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		h.logError("load event failed", err, "event_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load event"})
		return nil, false
	}
	return ev, true
}

func (h EventHandler) logError(msg string, err error, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

func eventDTO(ev event.Event) dto.Event {
	return dto.Event{
		ID:             ev.ID,
		OwnerID:        ev.OwnerID,
		Title:          ev.Title,
		Description:    ev.Description,
		Location:       dto.Location{Lat: ev.Location.Lat, Lon: ev.Location.Lon},
		Tags:           append([]string(nil), ev.Tags...),
		Capacity:       ev.Capacity,
		ParticipantIDs: append([]string(nil), ev.ParticipantIDs...),
		ImageURLs:      append([]string(nil), ev.ImageURLs...),
		PinCategory:    string(ev.PinCategory()),
		CapacityState:  string(ev.CapacityState()),
		StartsAt:       ev.StartsAt,
		CreatedAt:      ev.CreatedAt,
	}
}

var _ EventHTTP = (*EventHandler)(nil)
