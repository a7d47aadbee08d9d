package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/service"
	dErrors "idmanager/pkg/domain-errors"
	"idmanager/pkg/platform/httputil"
	adminmw "idmanager/pkg/platform/middleware/admin"
	"idmanager/pkg/requestcontext"
)

// Service defines the issuance use cases exposed over HTTP.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateRequests(ctx context.Context, cmds []service.CreateRequestCommand) ([]service.IssuedRequest, error)
	Request(ctx context.Context, id uuid.UUID) (*models.CredentialRequest, models.State, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	ResolveDeepLink(ctx context.Context, code string) (string, error)
	CredentialOffers(ctx context.Context, requestID *uuid.UUID) ([]*models.CredentialOffer, error)
	ReceiveInvitation(ctx context.Context, cmd service.ReceiveInvitationCommand) (string, error)
	IssueOnConnection(ctx context.Context, cmd service.IssueOnConnectionCommand) (*service.IssueResult, error)
	RegisterDefinition(ctx context.Context, cmd service.RegisterDefinitionCommand) (*models.CredentialDefinition, error)
	DisableDefinition(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
	siteURL string
	logger  *slog.Logger
}

func New(service Service, siteURL string, logger *slog.Logger) *Handler {
	return &Handler{service: service, siteURL: siteURL, logger: logger}
}

// RegisterAdmin mounts the operator API. Callers wrap r with the admin
// token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/credential-request", h.HandleCreateRequests)
	r.Get("/credential-request/{id}", h.HandleGetRequest)
	r.Delete("/credential-request/{id}", h.HandleRevokeRequest)
	r.Get("/credential-offer", h.HandleListOffers)
	r.Post("/connection-invitation", h.HandleReceiveInvitation)
	r.Post("/credential", h.HandleIssueCredential)
	r.Post("/credential-definition", h.HandleRegisterDefinition)
	r.Delete("/credential-definition/{id}", h.HandleDisableDefinition)
}

// RegisterPublic mounts the holder-facing routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/deep-link-redirect/{code}", h.HandleDeepLink)
}

// HandleCreateRequests accepts a single request object or an array of them
// and answers with the same shape.
func (h *Handler) HandleCreateRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read request body", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	batch := bytes.HasPrefix(bytes.TrimSpace(body), []byte("["))
	var reqs []CreateCredentialRequest
	if batch {
		err = json.Unmarshal(body, &reqs)
	} else {
		var single CreateCredentialRequest
		err = json.Unmarshal(body, &single)
		reqs = []CreateCredentialRequest{single}
	}
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode request body", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cmds := make([]service.CreateRequestCommand, 0, len(reqs))
	for i := range reqs {
		if err := httputil.PrepareRequest(&reqs[i]); err != nil {
			h.logger.WarnContext(ctx, "invalid request", "error", err, "request_id", requestID)
			httputil.WriteError(w, err)
			return
		}
		cmds = append(cmds, reqs[i].ToCommand())
	}

	issued, err := h.service.CreateRequests(ctx, cmds)
	if err != nil {
		h.logger.ErrorContext(ctx, "create credential requests failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	out := make([]*CredentialRequestResponse, 0, len(issued))
	for _, ir := range issued {
		out = append(out, toIssuedResponse(ir))
	}
	if batch {
		httputil.WriteJSON(w, http.StatusCreated, out)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out[0])
}

func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	req, state, err := h.service.Request(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "get credential request failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req, state, h.siteURL))
}

// HandleRevokeRequest revokes the credential issued for a request.
func (h *Handler) HandleRevokeRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Revoke(ctx, id); err != nil {
		h.logger.ErrorContext(ctx, "revoke credential request failed",
			"error", err,
			"credential_request_id", id,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential request revoked",
		"credential_request_id", id,
		"admin_actor_id", adminmw.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var filter *uuid.UUID
	if raw := r.URL.Query().Get("credential_request"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credential_request must be a UUID"))
			return
		}
		filter = &id
	}

	offers, err := h.service.CredentialOffers(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list credential offers failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	out := make([]*CredentialOfferResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, toOfferResponse(o))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleReceiveInvitation accepts an invitation issued by another agent.
func (h *Handler) HandleReceiveInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReceiveInvitationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	connID, err := h.service.ReceiveInvitation(ctx, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "receive invitation failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, ConnectionResponse{ConnectionID: connID})
}

// HandleIssueCredential sends an offer over an already accepted connection.
func (h *Handler) HandleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.IssueOnConnection(ctx, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "issue credential failed",
			"error", err,
			"connection_id", req.ConnectionID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, IssueCredentialResponse{
		ConnectionID:        res.ConnectionID,
		CredDefID:           res.CredDefID,
		CredentialRequestID: res.CredentialRequestID.String(),
	})
}

func (h *Handler) HandleRegisterDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterDefinitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	def, err := h.service.RegisterDefinition(ctx, req.ToCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "register credential definition failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toDefinitionResponse(def))
}

func (h *Handler) HandleDisableDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DisableDefinition(ctx, id); err != nil {
		h.logger.ErrorContext(ctx, "disable credential definition failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential definition disabled",
		"credential_definition_id", id,
		"admin_actor_id", adminmw.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeepLink redirects the holder's wallet to the didcomm URI of the
// request identified by code.
func (h *Handler) HandleDeepLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	code := chi.URLParam(r, "code")

	target, err := h.service.ResolveDeepLink(ctx, code)
	if err != nil {
		h.logger.WarnContext(ctx, "deep link resolution failed", "error", err, "code", code, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
