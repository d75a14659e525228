package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"propie/internal/grantclaim/models"
	"propie/internal/grantclaim/service"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/httputil"
	"propie/pkg/requestcontext"
)

// Service defines the grant claim operations exposed over HTTP.
type Service interface {
	Initiate(ctx context.Context, req service.InitiateRequest) (*models.Result, error)
	RecordAccessCode(ctx context.Context, cid id.ClaimID, code string, expiry time.Time) (*models.Result, error)
	SubmitAccessCode(ctx context.Context, cid id.ClaimID) (*models.Result, error)
	ProcessAccessCode(ctx context.Context, cid id.ClaimID, approve bool, note string) (*models.Result, error)
	UpdateClaimCode(ctx context.Context, cid id.ClaimID, req service.UpdateClaimCodeRequest) (*models.Result, error)
	RequestFunds(ctx context.Context, cid id.ClaimID, note string) (*models.Result, error)
	MarkFundsReceived(ctx context.Context, cid id.ClaimID, received decimal.Decimal) (*models.Result, error)
	MarkDepositApplied(ctx context.Context, cid id.ClaimID, amount decimal.Decimal) (*models.Result, error)
	Complete(ctx context.Context, cid id.ClaimID) (*models.Result, error)
	Cancel(ctx context.Context, cid id.ClaimID, reason string) (*models.Result, error)
	AddNote(ctx context.Context, cid id.ClaimID, body string, private bool) (*models.Result, error)
	AttachDocument(ctx context.Context, cid id.ClaimID, ref models.DocumentRef) (*models.Result, error)
	Get(ctx context.Context, cid id.ClaimID) (*models.GrantClaim, error)
	History(ctx context.Context, cid id.ClaimID) ([]models.StatusHistoryEntry, error)
	ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.GrantClaim, error)
	ListByDeveloper(ctx context.Context, developerID id.UserID, status *models.Status) ([]*models.GrantClaim, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts grant claim endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/grant-claims", func(r chi.Router) {
		r.Post("/", h.HandleInitiate)
		r.Get("/", h.HandleList)
		r.Route("/{claimID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/history", h.HandleHistory)
			r.Post("/access-code", h.HandleRecordAccessCode)
			r.Post("/access-code/submit", h.HandleSubmitAccessCode)
			r.Post("/access-code/decision", h.HandleProcessAccessCode)
			r.Post("/claim-code", h.HandleUpdateClaimCode)
			r.Post("/request-funds", h.HandleRequestFunds)
			r.Post("/funds-received", h.HandleFundsReceived)
			r.Post("/deposit-applied", h.HandleDepositApplied)
			r.Post("/complete", h.HandleComplete)
			r.Post("/cancel", h.HandleCancel)
			r.Post("/notes", h.HandleAddNote)
			r.Post("/documents", h.HandleAttachDocument)
		})
	})
}

// HandleInitiate handles POST /grant-claims. Buyers claim for themselves.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	buyerID := req.parsedBuyerID
	if buyerID.IsNil() && actor.Role == id.RoleBuyer {
		buyerID = actor.ID
	}
	res, err := h.service.Initiate(ctx, service.InitiateRequest{
		BuyerID:         buyerID,
		PropertyID:      req.parsedPropertyID,
		DeveloperID:     req.parsedDeveloperID,
		RequestedAmount: req.RequestedAmount,
	})
	if err != nil {
		h.fail(ctx, w, "initiate grant claim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromResult(res))
}

// HandleList handles GET /grant-claims. Developers see their dashboard
// (optionally filtered by ?status=); everyone else lists by buyer.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		list []*models.GrantClaim
		err  error
	)
	switch {
	case q.Get("developer_id") != "" || (actor.Role == id.RoleDeveloper && q.Get("buyer_id") == ""):
		developerID := actor.ID
		if raw := q.Get("developer_id"); raw != "" {
			if developerID, err = id.ParseUserID(raw); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		var status *models.Status
		if raw := q.Get("status"); raw != "" {
			st := models.Status(raw)
			status = &st
		}
		list, err = h.service.ListByDeveloper(ctx, developerID, status)
	default:
		buyerID := actor.ID
		if raw := q.Get("buyer_id"); raw != "" {
			if buyerID, err = id.ParseUserID(raw); err != nil {
				httputil.WriteError(w, err)
				return
			}
		} else if actor.Role != id.RoleBuyer {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "buyer_id or developer_id is required"))
			return
		}
		list, err = h.service.ListByBuyer(ctx, buyerID)
	}
	if err != nil {
		h.fail(ctx, w, "list grant claims failed", err)
		return
	}
	resp := ListResponse{Claims: make([]*ClaimResponse, 0, len(list))}
	for _, c := range list {
		resp.Claims = append(resp.Claims, FromClaim(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(ctx, cid)
	if err != nil {
		h.fail(ctx, w, "get grant claim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaim(c))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(ctx, cid)
	if err != nil {
		h.fail(ctx, w, "get grant claim history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{History: history})
}

func (h *Handler) HandleRecordAccessCode(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AccessCodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "record access code failed")(h.service.RecordAccessCode(ctx, cid, req.Code, req.Expiry))
}

func (h *Handler) HandleSubmitAccessCode(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	h.respond(ctx, w, "submit access code failed")(h.service.SubmitAccessCode(ctx, cid))
}

func (h *Handler) HandleProcessAccessCode(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "process access code failed")(h.service.ProcessAccessCode(ctx, cid, *req.Approve, req.Note))
}

func (h *Handler) HandleUpdateClaimCode(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ClaimCodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "update claim code failed")(h.service.UpdateClaimCode(ctx, cid, service.UpdateClaimCodeRequest{
		Code:           req.Code,
		Expiry:         req.Expiry,
		ApprovedAmount: req.ApprovedAmount,
		Evidence:       &req.evidence,
	}))
}

func (h *Handler) HandleRequestFunds(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RequestFundsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "request funds failed")(h.service.RequestFunds(ctx, cid, req.Note))
}

func (h *Handler) HandleFundsReceived(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "mark funds received failed")(h.service.MarkFundsReceived(ctx, cid, req.Amount))
}

func (h *Handler) HandleDepositApplied(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "mark deposit applied failed")(h.service.MarkDepositApplied(ctx, cid, req.Amount))
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	h.respond(ctx, w, "complete grant claim failed")(h.service.Complete(ctx, cid))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "cancel grant claim failed")(h.service.Cancel(ctx, cid, req.Reason))
}

func (h *Handler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[NoteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(ctx, w, "add note failed")(h.service.AddNote(ctx, cid, req.Body, req.Private))
}

func (h *Handler) HandleAttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	ref, err := req.toModel()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(ctx, w, "attach document failed")(h.service.AttachDocument(ctx, cid, ref))
}

// prepare checks authentication and parses the claim ID path parameter.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (context.Context, id.ClaimID, bool) {
	ctx := r.Context()
	if _, ok := h.requireActor(w, ctx); !ok {
		return ctx, id.ClaimID{}, false
	}
	cid, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return ctx, id.ClaimID{}, false
	}
	return ctx, cid, true
}

func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (id.Actor, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.Role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Actor{}, false
	}
	return actor, true
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, failMsg string) func(*models.Result, error) {
	start := time.Now()
	return func(res *models.Result, err error) {
		if err != nil {
			h.fail(ctx, w, failMsg, err)
			return
		}
		h.logger.InfoContext(ctx, "grant claim updated",
			"request_id", requestcontext.RequestID(ctx),
			"claim_id", res.Claim.ID.String(),
			"status", res.Claim.Status,
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
