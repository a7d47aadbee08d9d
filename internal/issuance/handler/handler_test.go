package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idmanager/internal/issuance/handler/mocks"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/service"
	dErrors "idmanager/pkg/domain-errors"
	"idmanager/pkg/platform/httputil"
	adminmw "idmanager/pkg/platform/middleware/admin"
)

const (
	adminToken = "secret-token"
	siteURL    = "https://id.example.org"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	logs    *bytes.Buffer
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(s.logs, nil))

	h := New(s.service, siteURL, logger)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

func (s *HandlerSuite) do(method, target, body string, admin bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Token", adminToken)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func issued(code string) service.IssuedRequest {
	req := &models.CredentialRequest{
		ID:                     uuid.New(),
		Code:                   code,
		CredentialDefinitionID: uuid.New(),
		CreatedAt:              time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	return service.IssuedRequest{
		Request:              req,
		InvitationURL:        req.InvitationURL(siteURL),
		ConnectionPollingURL: req.ConnectionPollingURL(siteURL),
		OfferPollingURL:      req.OfferPollingURL(siteURL),
	}
}

func (s *HandlerSuite) TestAdminTokenRequired() {
	rec := s.do(http.MethodGet, "/credential-request/"+uuid.New().String(), "", false)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateRequests() {
	s.Run("single object answers with an object", func() {
		s.service.EXPECT().CreateRequests(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, cmds []service.CreateRequestCommand) ([]service.IssuedRequest, error) {
				s.Require().Len(cmds, 1)
				s.Equal("Employee Badge", cmds[0].CredentialDefinition)
				s.Equal("jane@example.org", cmds[0].Email)
				s.Equal([]string{"surname", "name"}, cmds[0].CredentialData.Names())
				return []service.IssuedRequest{issued("abc")}, nil
			})

		rec := s.do(http.MethodPost, "/credential-request",
			`{"credential_definition":" Employee Badge ","credential_data":{"surname":"Doe","name":"Jane"},"email":"jane@example.org"}`, true)

		s.Require().Equal(http.StatusCreated, rec.Code)
		var body CredentialRequestResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("abc", body.Code)
		s.Equal(siteURL+"/deep-link-redirect/abc", body.InvitationURL)
		s.Equal(siteURL+"/connection-check?code=abc", body.ConnectionPollingURL)
	})

	s.Run("array answers with an array", func() {
		s.service.EXPECT().CreateRequests(gomock.Any(), gomock.Len(2)).
			Return([]service.IssuedRequest{issued("a"), issued("b")}, nil)

		rec := s.do(http.MethodPost, "/credential-request", `[
			{"credential_definition":"badge","credential_data":{"name":"A"},"email":"a@example.org"},
			{"credential_definition":"badge","credential_data":{"name":"B"},"email":"b@example.org"}
		]`, true)

		s.Require().Equal(http.StatusCreated, rec.Code)
		var body []CredentialRequestResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Len(body, 2)
		s.Equal("a", body[0].Code)
		s.Equal("b", body[1].Code)
	})

	s.Run("invalid email is rejected before the service", func() {
		rec := s.do(http.MethodPost, "/credential-request",
			`{"credential_definition":"badge","credential_data":{"name":"A"},"email":"not-an-email"}`, true)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", s.errorCode(rec))
	})

	s.Run("malformed body", func() {
		rec := s.do(http.MethodPost, "/credential-request", `{"credential_definition":`, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown definition", func() {
		s.service.EXPECT().CreateRequests(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "credential definition does not exist"))

		rec := s.do(http.MethodPost, "/credential-request",
			`{"credential_definition":"missing","credential_data":{"name":"A"},"email":"a@example.org"}`, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetRequest() {
	s.Run("reports progress flags from the state", func() {
		req := issued("abc").Request
		s.service.EXPECT().Request(gomock.Any(), req.ID).Return(req, models.StateCredentialAccepted, nil)

		rec := s.do(http.MethodGet, "/credential-request/"+req.ID.String(), "", true)

		s.Require().Equal(http.StatusOK, rec.Code)
		var body CredentialRequestResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(models.StateCredentialAccepted, body.State)
		s.True(body.ConnectionAccepted)
		s.True(body.CredentialOfferAccepted)
		s.False(body.RevokedCredential)
	})

	s.Run("not found", func() {
		id := uuid.New()
		s.service.EXPECT().Request(gomock.Any(), id).
			Return(nil, models.State(""), dErrors.New(dErrors.CodeNotFound, "credential request not found"))

		rec := s.do(http.MethodGet, "/credential-request/"+id.String(), "", true)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodGet, "/credential-request/nope", "", true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRevokeRequest() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"revoked", nil, http.StatusNoContent},
		{"already revoked", dErrors.New(dErrors.CodeAlreadyRevoked, "already revoked"), http.StatusConflict},
		{"no offer", dErrors.New(dErrors.CodeNotFound, "offer not found"), http.StatusNotFound},
		{"agent failure", dErrors.New(dErrors.CodeAgent, "error sending revocation"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			id := uuid.New()
			s.service.EXPECT().Revoke(gomock.Any(), id).Return(tc.err)

			rec := s.do(http.MethodDelete, "/credential-request/"+id.String(), "", true)
			s.Equal(tc.status, rec.Code)
		})
	}
}

func (s *HandlerSuite) TestRevokeLogsAdminActor() {
	id := uuid.New()
	s.service.EXPECT().Revoke(gomock.Any(), id).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/credential-request/"+id.String(), nil)
	req.Header.Set("X-Admin-Token", adminToken)
	req.Header.Set("X-Admin-Actor-ID", "ops-7")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusNoContent, rec.Code)
	s.Contains(s.logs.String(), `"msg":"credential request revoked"`)
	s.Contains(s.logs.String(), `"admin_actor_id":"ops-7"`)
}

func (s *HandlerSuite) TestListOffers() {
	s.Run("filters by request", func() {
		id := uuid.New()
		revID := "7"
		offer := &models.CredentialOffer{
			ID:                  uuid.New(),
			ConnectionID:        "conn-1",
			CredExID:            "ex-1",
			OfferJSON:           json.RawMessage(`{"cred_ex_id":"ex-1"}`),
			RevocationID:        &revID,
			CredentialRequestID: &id,
		}
		s.service.EXPECT().CredentialOffers(gomock.Any(), gomock.Eq(&id)).Return([]*models.CredentialOffer{offer}, nil)

		rec := s.do(http.MethodGet, "/credential-offer?credential_request="+id.String(), "", true)

		s.Require().Equal(http.StatusOK, rec.Code)
		var body []CredentialOfferResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Len(body, 1)
		s.Equal("ex-1", body[0].CredExID)
		s.Equal("7", *body[0].RevocationID)
		s.Nil(body[0].CredentialID)
		s.Equal(id.String(), *body[0].CredentialRequestID)
	})

	s.Run("without filter", func() {
		s.service.EXPECT().CredentialOffers(gomock.Any(), gomock.Nil()).Return(nil, nil)

		rec := s.do(http.MethodGet, "/credential-offer", "", true)
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`[]`, rec.Body.String())
	})

	s.Run("malformed filter", func() {
		rec := s.do(http.MethodGet, "/credential-offer?credential_request=x", "", true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestReceiveInvitation() {
	s.Run("returns the connection id", func() {
		s.service.EXPECT().ReceiveInvitation(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, cmd service.ReceiveInvitationCommand) (string, error) {
				s.True(cmd.OutOfBand)
				s.JSONEq(`{"@type":"invitation","label":"peer"}`, string(cmd.Invitation))
				return "conn-9", nil
			})

		rec := s.do(http.MethodPost, "/connection-invitation",
			`{"invitation_json":{"@type":"invitation","label":"peer"},"out_of_band":true}`, true)

		s.Require().Equal(http.StatusCreated, rec.Code)
		s.JSONEq(`{"connection_id":"conn-9"}`, rec.Body.String())
	})

	s.Run("missing invitation", func() {
		rec := s.do(http.MethodPost, "/connection-invitation", `{}`, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("agent rejects the invitation", func() {
		s.service.EXPECT().ReceiveInvitation(gomock.Any(), gomock.Any()).
			Return("", dErrors.New(dErrors.CodeBadRequest, "invitation rejected"))

		rec := s.do(http.MethodPost, "/connection-invitation", `{"invitation_json":{"label":"peer"}}`, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestIssueCredential() {
	s.Run("created", func() {
		reqID := uuid.New()
		s.service.EXPECT().IssueOnConnection(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, cmd service.IssueOnConnectionCommand) (*service.IssueResult, error) {
				s.Equal("conn-1", cmd.ConnectionID)
				s.Equal("cred-def-1", cmd.CredDefID)
				return &service.IssueResult{ConnectionID: cmd.ConnectionID, CredDefID: cmd.CredDefID, CredentialRequestID: reqID}, nil
			})

		rec := s.do(http.MethodPost, "/credential",
			`{"connection_id":"conn-1","cred_def_id":"cred-def-1","credential_data":{"name":"Jane"}}`, true)

		s.Require().Equal(http.StatusCreated, rec.Code)
		var body IssueCredentialResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(reqID.String(), body.CredentialRequestID)
	})

	s.Run("connection not ready", func() {
		s.service.EXPECT().IssueOnConnection(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConnectionNotReady, "connection not ready: no active connection"))

		rec := s.do(http.MethodPost, "/credential",
			`{"connection_id":"conn-1","cred_def_id":"cred-def-1","credential_data":{"name":"Jane"}}`, true)

		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal("connection_not_ready", s.errorCode(rec))
	})

	s.Run("field rules name the json field", func() {
		cases := map[string]string{
			`{"connection_id":"  ","cred_def_id":"cred-def-1","credential_data":{"name":"Jane"}}`: "connection_id is required",
			`{"connection_id":"conn-1","credential_data":{"name":"Jane"}}`:                        "cred_def_id is required",
			`{"connection_id":"conn-1","cred_def_id":"cred-def-1","credential_data":{}}`:          "credential_data must have at least 1 entries",
		}
		for body, want := range cases {
			rec := s.do(http.MethodPost, "/credential", body, true)

			s.Equal(http.StatusBadRequest, rec.Code, body)
			var resp httputil.ErrorResponse
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
			s.Equal("validation_error", resp.Error)
			s.Equal(want, resp.ErrorDescription)
		}
	})
}

func (s *HandlerSuite) TestDefinitions() {
	s.Run("register", func() {
		def := &models.CredentialDefinition{
			ID:                     uuid.New(),
			Name:                   "Employee Badge",
			CredentialID:           "did:1:3:CL:1:employeebadge",
			SchemaID:               "did:2:badge:1.0",
			AttributeNames:         []string{"name"},
			RevocationRegistrySize: models.DefaultRevocationRegistrySize,
			Enabled:                true,
		}
		s.service.EXPECT().RegisterDefinition(gomock.Any(), service.RegisterDefinitionCommand{
			Name:     "Employee Badge",
			SchemaID: "did:2:badge:1.0",
		}).Return(def, nil)

		rec := s.do(http.MethodPost, "/credential-definition",
			`{"name":"Employee Badge","schema_id":"did:2:badge:1.0"}`, true)

		s.Require().Equal(http.StatusCreated, rec.Code)
		var body CredentialDefinitionResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(def.CredentialID, body.CredentialID)
		s.True(body.Enabled)
	})

	s.Run("negative registry size", func() {
		rec := s.do(http.MethodPost, "/credential-definition",
			`{"name":"Employee Badge","schema_id":"did:2:badge:1.0","revocation_registry_size":-1}`, true)

		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", s.errorCode(rec))
	})

	s.Run("disable", func() {
		id := uuid.New()
		s.service.EXPECT().DisableDefinition(gomock.Any(), id).Return(nil)

		rec := s.do(http.MethodDelete, "/credential-definition/"+id.String(), "", true)
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

func (s *HandlerSuite) TestDeepLink() {
	s.Run("redirects to the wallet", func() {
		s.service.EXPECT().ResolveDeepLink(gomock.Any(), "abc").Return("didcomm://launch?c_i=eyJ9", nil)

		rec := s.do(http.MethodGet, "/deep-link-redirect/abc", "", false)

		s.Equal(http.StatusFound, rec.Code)
		s.Equal("didcomm://launch?c_i=eyJ9", rec.Header().Get("Location"))
	})

	s.Run("already accepted", func() {
		s.service.EXPECT().ResolveDeepLink(gomock.Any(), "done").
			Return("", dErrors.New(dErrors.CodeAlreadyAccepted, "credential already accepted - code: done"))

		rec := s.do(http.MethodGet, "/deep-link-redirect/done", "", false)

		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("already_accepted", s.errorCode(rec))
	})
}
