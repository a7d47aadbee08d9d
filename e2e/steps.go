package e2e

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Setup steps
	ctx.Step(`^the agent publishes schema "([^"]*)" with attributes "([^"]*)"$`, tc.agentPublishesSchema)
	ctx.Step(`^credential definition "([^"]*)" is registered for schema "([^"]*)"$`, tc.definitionIsRegistered)

	// Request steps
	ctx.Step(`^I create a credential request for "([^"]*)" with email "([^"]*)" and data:$`, tc.createRequest)
	ctx.Step(`^I create credential requests for "([^"]*)" for emails "([^"]*)" with data:$`, tc.createRequestBatch)
	ctx.Step(`^I (GET|POST|DELETE) "([^"]*)" as admin$`, tc.adminRequest)
	ctx.Step(`^I POST to "([^"]*)" as admin with body:$`, tc.adminPostWithBody)
	ctx.Step(`^I (GET|POST) "([^"]*)" without the admin token$`, tc.anonymousRequest)
	ctx.Step(`^I open the deep link for "([^"]*)"$`, tc.openDeepLink)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, tc.saveResponseField)

	// Holder and agent steps
	ctx.Step(`^the holder accepts the invitation$`, tc.holderAcceptsInvitation)
	ctx.Step(`^the agent repeats the connection webhook$`, tc.holderAcceptsAgain)
	ctx.Step(`^the holder stores the credential$`, tc.holderStoresCredential)
	ctx.Step(`^the agent fails the next (\d+) "([^"]*)" calls?$`, tc.agentFailsNext)
	ctx.Step(`^the holder should have received (\d+) credential offers?$`, tc.holderReceivedOffers)
	ctx.Step(`^the agent should have revoked (\d+) credentials?$`, tc.agentRevoked)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the response should be a list of (\d+) items?$`, tc.responseListLength)
	ctx.Step(`^the response header "([^"]*)" should start with "([^"]*)"$`, tc.responseHeaderShouldStartWith)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, tc.responseHeaderShouldEqual)
}

func (tc *TestContext) agentPublishesSchema(ctx context.Context, schemaID, attrs string) error {
	tc.stack.agent.AddSchema(schemaID, strings.Split(attrs, ",")...)
	return nil
}

func (tc *TestContext) definitionIsRegistered(ctx context.Context, name, schemaID string) error {
	body := map[string]any{
		"name":                     name,
		"schema_id":                schemaID,
		"support_revocation":       true,
		"revocation_registry_size": 100,
	}
	if err := tc.Do(http.MethodPost, "/credential-definition", body, true); err != nil {
		return err
	}
	if err := tc.responseStatusShouldBe(ctx, http.StatusCreated); err != nil {
		return err
	}
	return tc.saveResponseField(ctx, "credential_id", "cred_def_id")
}

func (tc *TestContext) createRequest(ctx context.Context, definition, email string, data *godog.Table) error {
	body := map[string]any{
		"credential_definition": definition,
		"email":                 email,
		"credential_data":       tableToMap(data),
	}
	return tc.Do(http.MethodPost, "/credential-request", body, true)
}

func (tc *TestContext) createRequestBatch(ctx context.Context, definition, emails string, data *godog.Table) error {
	var body []map[string]any
	for _, email := range strings.Split(emails, ",") {
		body = append(body, map[string]any{
			"credential_definition": definition,
			"email":                 strings.TrimSpace(email),
			"credential_data":       tableToMap(data),
		})
	}
	return tc.Do(http.MethodPost, "/credential-request", body, true)
}

func (tc *TestContext) adminRequest(ctx context.Context, method, path string) error {
	return tc.Do(method, path, nil, true)
}

func (tc *TestContext) adminPostWithBody(ctx context.Context, path string, doc *godog.DocString) error {
	raw := json.RawMessage(tc.expand(doc.Content))
	return tc.Do(http.MethodPost, path, raw, true)
}

func (tc *TestContext) anonymousRequest(ctx context.Context, method, path string) error {
	var body any
	if method == http.MethodPost {
		body = map[string]any{}
	}
	return tc.Do(method, path, body, false)
}

func (tc *TestContext) openDeepLink(ctx context.Context, name string) error {
	code, ok := tc.saved[name]
	if !ok {
		return fmt.Errorf("nothing saved as %q", name)
	}
	return tc.Do(http.MethodGet, "/deep-link-redirect/"+code, nil, false)
}

func (tc *TestContext) saveResponseField(ctx context.Context, field, name string) error {
	value, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	tc.saved[name] = fmt.Sprint(value)
	return nil
}

// holderAcceptsInvitation decodes the invitation the last deep link pointed
// at and accepts the agent connection behind it.
func (tc *TestContext) holderAcceptsInvitation(ctx context.Context) error {
	location := tc.LastResponse.Header.Get("Location")
	_, encoded, ok := strings.Cut(location, "c_i=")
	if !ok || encoded == "" {
		return fmt.Errorf("no invitation in location %q", location)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode invitation: %w", err)
	}
	var invitation struct {
		RecipientKeys []string `json:"recipientKeys"`
	}
	if err := json.Unmarshal(raw, &invitation); err != nil {
		return fmt.Errorf("parse invitation: %w", err)
	}
	if len(invitation.RecipientKeys) == 0 {
		return fmt.Errorf("invitation has no recipient keys: %s", raw)
	}
	tc.saved["connection_id"] = strings.TrimPrefix(invitation.RecipientKeys[0], "key-")
	return tc.stack.agent.AcceptInvitation(ctx, tc.saved["connection_id"])
}

func (tc *TestContext) holderAcceptsAgain(ctx context.Context) error {
	return tc.stack.agent.AcceptInvitation(ctx, tc.saved["connection_id"])
}

func (tc *TestContext) holderStoresCredential(ctx context.Context) error {
	exchanges := tc.stack.agent.Exchanges(tc.saved["connection_id"])
	if len(exchanges) == 0 {
		return fmt.Errorf("no credential offer on connection %s", tc.saved["connection_id"])
	}
	return tc.stack.agent.IssueCredential(ctx, exchanges[len(exchanges)-1].ID)
}

func (tc *TestContext) agentFailsNext(ctx context.Context, n int, route string) error {
	tc.stack.agent.FailNext(route, n)
	return nil
}

func (tc *TestContext) holderReceivedOffers(ctx context.Context, n int) error {
	if got := len(tc.stack.agent.Exchanges(tc.saved["connection_id"])); got != n {
		return fmt.Errorf("expected %d credential offers but got %d", n, got)
	}
	return nil
}

func (tc *TestContext) agentRevoked(ctx context.Context, n int) error {
	if got := len(tc.stack.agent.Revocations()); got != n {
		return fmt.Errorf("expected %d revocations but got %d", n, got)
	}
	return nil
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if actual := tc.GetLastResponseStatus(); actual != expectedStatus {
		return fmt.Errorf("expected status %d but got %d", expectedStatus, actual)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actualValue, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != tc.expand(expectedValue) {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (tc *TestContext) responseListLength(ctx context.Context, n int) error {
	var items []json.RawMessage
	if err := json.Unmarshal(tc.LastResponseBody, &items); err != nil {
		return fmt.Errorf("response is not a list: %w", err)
	}
	if len(items) != n {
		return fmt.Errorf("expected %d items but got %d", n, len(items))
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldStartWith(ctx context.Context, header, prefix string) error {
	if value := tc.LastResponse.Header.Get(header); !strings.HasPrefix(value, prefix) {
		return fmt.Errorf("header %s: expected prefix %q but got %q", header, prefix, value)
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldEqual(ctx context.Context, header, expected string) error {
	if value := tc.LastResponse.Header.Get(header); value != expected {
		return fmt.Errorf("header %s: expected %q but got %q", header, expected, value)
	}
	return nil
}

func tableToMap(table *godog.Table) map[string]string {
	out := make(map[string]string, len(table.Rows))
	for _, row := range table.Rows {
		if len(row.Cells) == 2 {
			out[row.Cells[0].Value] = row.Cells[1].Value
		}
	}
	return out
}
