package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"propie/internal/reservation/models"
	"propie/internal/reservation/service"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/httputil"
	"propie/pkg/requestcontext"
)

// Service defines the reservation operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Result, error)
	ConfirmPayment(ctx context.Context, rid id.ReservationID, transactionRef, paymentMethod string) (*models.Result, error)
	Extend(ctx context.Context, rid id.ReservationID, additionalDays int) (*models.Result, error)
	Cancel(ctx context.Context, rid id.ReservationID, reason string) (*models.Result, error)
	Convert(ctx context.Context, rid id.ReservationID) (*models.Result, error)
	Get(ctx context.Context, rid id.ReservationID) (*models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Reservation, error)
}

// Handler wires reservation endpoints to the reservation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts reservation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{reservationID}", h.HandleGet)
		r.Post("/{reservationID}/confirm-payment", h.HandleConfirmPayment)
		r.Post("/{reservationID}/extend", h.HandleExtend)
		r.Post("/{reservationID}/cancel", h.HandleCancel)
		r.Post("/{reservationID}/convert", h.HandleConvert)
	})
}

// HandleCreate handles POST /reservations. Buyers reserve for themselves;
// other roles must name the buyer.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateReservationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	buyerID := req.parsedBuyerID
	if buyerID.IsNil() && actor.Role == id.RoleBuyer {
		buyerID = actor.ID
	}

	res, err := h.service.Create(ctx, service.CreateRequest{
		PropertyID:       req.parsedPropertyID,
		BuyerID:          buyerID,
		Type:             models.Type(req.Type),
		FeeAmount:        req.FeeAmount,
		BuyerDetails:     req.buyerDetails(),
		PropertySnapshot: req.propertySnapshot(),
	})
	if err != nil {
		h.fail(ctx, w, "create reservation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromResult(res))
}

// HandleList handles GET /reservations?buyer_id=. Buyers default to their own.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	buyerID := actor.ID
	if raw := r.URL.Query().Get("buyer_id"); raw != "" {
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		buyerID = parsed
	} else if actor.Role != id.RoleBuyer {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "buyer_id is required"))
		return
	}

	list, err := h.service.ListByBuyer(ctx, buyerID)
	if err != nil {
		h.fail(ctx, w, "list reservations failed", err)
		return
	}
	resp := ListResponse{Reservations: make([]*ReservationResponse, 0, len(list))}
	for _, res := range list {
		resp.Reservations = append(resp.Reservations, FromReservation(res))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /reservations/{reservationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}
	rid, ok := reservationID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Get(ctx, rid)
	if err != nil {
		h.fail(ctx, w, "get reservation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReservation(res))
}

func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}
	rid, ok := reservationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfirmPaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "confirm payment failed")(h.service.ConfirmPayment(ctx, rid, req.TransactionRef, req.PaymentMethod))
}

func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}
	rid, ok := reservationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExtendRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "extend reservation failed")(h.service.Extend(ctx, rid, req.AdditionalDays))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}
	rid, ok := reservationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "cancel reservation failed")(h.service.Cancel(ctx, rid, req.Reason))
}

func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return
	}
	rid, ok := reservationID(w, r)
	if !ok {
		return
	}
	h.respond(ctx, w, "convert reservation failed")(h.service.Convert(ctx, rid))
}

func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (id.Actor, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.Role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Actor{}, false
	}
	return actor, true
}

// respond writes a mutation result, logging failures with the request ID.
func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, failMsg string) func(*models.Result, error) {
	start := time.Now()
	return func(res *models.Result, err error) {
		if err != nil {
			h.fail(ctx, w, failMsg, err)
			return
		}
		h.logger.InfoContext(ctx, "reservation updated",
			"request_id", requestcontext.RequestID(ctx),
			"reservation_id", res.Reservation.ID.String(),
			"status", res.Reservation.Status,
			"warnings", len(res.Warnings),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteJSON(w, http.StatusOK, FromResult(res))
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func reservationID(w http.ResponseWriter, r *http.Request) (id.ReservationID, bool) {
	rid, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ReservationID{}, false
	}
	return rid, true
}

