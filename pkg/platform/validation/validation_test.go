package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idmanager/pkg/domain-errors"
)

type subscribeRequest struct {
	Email    string   `json:"email" validate:"required,email,max=255"`
	Label    string   `json:"label" validate:"required,notblank"`
	Callback string   `json:"callback_url" validate:"omitempty,url"`
	Topics   []string `json:"topics" validate:"required,min=1"`
}

type untaggedCommand struct {
	CredDefID string `validate:"required"`
}

func validRequest() subscribeRequest {
	return subscribeRequest{Email: "jane@example.org", Label: "jane", Topics: []string{"issued"}}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validRequest()))

	cases := map[string]struct {
		mutate func(*subscribeRequest)
		want   string
	}{
		"missing email": {func(r *subscribeRequest) { r.Email = "" }, "email is required"},
		"bad email":     {func(r *subscribeRequest) { r.Email = "nope" }, "email must be a valid email"},
		"blank label":   {func(r *subscribeRequest) { r.Label = "   " }, "label must not be blank"},
		"bad callback":  {func(r *subscribeRequest) { r.Callback = "not a url" }, "callback_url must be a valid url"},
		"no topics":     {func(r *subscribeRequest) { r.Topics = nil }, "topics is required"},
		"empty topics":  {func(r *subscribeRequest) { r.Topics = []string{} }, "topics must have at least 1 entries"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			err := Validate(&req)

			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestUntaggedFieldsAreSnakeCased(t *testing.T) {
	err := Validate(untaggedCommand{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cred_def_id is required")
}

func TestErrorMessageFallback(t *testing.T) {
	assert.Equal(t, "invalid request body", ErrorMessage(assert.AnError))
}
