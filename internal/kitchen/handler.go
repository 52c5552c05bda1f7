package kitchen

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	cache   *TicketStateCache
	logger  apt.Logger
	config  *apt.Config
	tlm     *telemetry.HTTP
}

type HandlerDeps struct {
	Service *Service
	Cache   *TicketStateCache
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		service: hd.Service,
		cache:   hd.Cache,
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.SubmitOrder)
	})

	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/{id}", h.GetTicket)
		r.Patch("/{id}/start", h.StartTicket)
		r.Patch("/{id}/complete", h.CompleteTicket)
		r.Patch("/{id}/serve", h.ServeTicket)
		r.Patch("/{id}/cancel", h.CancelTicket)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type submitOrderRequest struct {
	OrderID      string            `json:"order_id,omitempty"`
	RestaurantID string            `json:"restaurant_id"`
	TableID      string            `json:"table_id,omitempty"`
	TableNumber  string            `json:"table_number,omitempty"`
	Items        []submitOrderItem `json:"items"`
}

type submitOrderItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"price"`
	Notes      string   `json:"notes,omitempty"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags,omitempty"`
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var req submitOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("invalid order payload", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	sub := Submission{
		OrderID:      apt.GenerateNewID(),
		RestaurantID: restaurantID,
		TableNumber:  req.TableNumber,
	}

	if req.OrderID != "" {
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}
		sub.OrderID = orderID
	}

	if req.TableID != "" {
		tableID, err := uuid.Parse(req.TableID)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid table ID")
			return
		}
		sub.TableID = tableID
	}

	for _, item := range req.Items {
		menuItemID, _ := uuid.Parse(item.MenuItemID)
		sub.Items = append(sub.Items, OrderLine{
			MenuItemID: menuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Notes:      item.Notes,
			Category:   item.Category,
			Tags:       item.Tags,
		})
	}

	tickets, err := h.service.SubmitOrder(ctx, sub)
	if err != nil {
		if IsInvalidOrder(err) {
			log.Debug("order rejected", "order_id", sub.OrderID.String(), "error", err)
			apt.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("cannot route order", "order_id", sub.OrderID.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not route order")
		return
	}

	apt.Respond(w, http.StatusCreated, map[string]interface{}{
		"order_id": sub.OrderID.String(),
		"tickets":  tickets,
	}, nil)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTickets")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	query := r.URL.Query()

	// The cache serves the common board query: active tickets for one
	// restaurant, FIFO. Everything else goes to the repository.
	if restaurantIDStr := query.Get("restaurant_id"); restaurantIDStr != "" && h.cache != nil &&
		query.Get("station") == "" && query.Get("status") == "" && query.Get("order_id") == "" &&
		query.Get("all") == "" {
		restaurantID, err := uuid.Parse(restaurantIDStr)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid restaurant ID")
			return
		}
		apt.Respond(w, http.StatusOK, map[string]interface{}{
			"tickets": h.cache.ActiveFIFO(restaurantID),
		}, nil)
		return
	}

	filter := TicketFilter{ActiveOnly: query.Get("all") == ""}

	if restaurantIDStr := query.Get("restaurant_id"); restaurantIDStr != "" {
		restaurantID, err := uuid.Parse(restaurantIDStr)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid restaurant ID")
			return
		}
		filter.RestaurantID = &restaurantID
	}

	if stationCode := query.Get("station"); stationCode != "" {
		filter.Station = &stationCode
	}

	if statusCode := query.Get("status"); statusCode != "" {
		filter.Status = &statusCode
	}

	if orderIDStr := query.Get("order_id"); orderIDStr != "" {
		orderID, err := uuid.Parse(orderIDStr)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}
		filter.OrderID = &orderID
	}

	tickets, err := h.service.repo.List(ctx, filter)
	if err != nil {
		log.Error("cannot list tickets", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list tickets")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		if ticket := h.cache.Get(id); ticket != nil {
			links := apt.RESTfulLinksFor(ticket)
			apt.RespondSuccess(w, ticket, links...)
			return
		}
	}

	ticket, err := h.service.repo.FindByID(ctx, id)
	if err != nil {
		log.Debug("ticket not found", "id", id.String(), "error", err)
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	links := apt.RESTfulLinksFor(ticket)
	apt.RespondSuccess(w, ticket, links...)
}

func (h *Handler) StartTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.StartTicket", ticketstatus.Statuses.InProgress)
}

func (h *Handler) CompleteTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.CompleteTicket", ticketstatus.Statuses.Ready)
}

func (h *Handler) ServeTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.ServeTicket", ticketstatus.Statuses.Served)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.CancelTicket", ticketstatus.Statuses.Cancelled)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, span string, to ticketstatus.Status) {
	w, r, finish := h.tlm.Start(w, r, span)
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	ticket, err := h.service.Transition(ctx, id, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrTicketNotFound):
			apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		case IsInvalidTransition(err):
			// Another station got there first; the board should refresh.
			log.Info("transition rejected", "ticket_id", id.String(), "error", err)
			apt.RespondError(w, http.StatusConflict, err.Error())
		default:
			log.Error("cannot update ticket", "ticket_id", id.String(), "error", err)
			apt.RespondError(w, http.StatusInternalServerError, "Could not update ticket")
		}
		return
	}

	links := apt.RESTfulLinksFor(ticket)
	apt.RespondSuccess(w, ticket, links...)
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid ticket ID")
		return uuid.Nil, false
	}
	return id, true
}
