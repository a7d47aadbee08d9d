// Package crafter turns credential data into agent offer payloads.
package crafter

import (
	"time"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/models"
)

const textPlain = "text/plain"

// Crafter builds the offer for one connection and credential definition.
type Crafter interface {
	// Attributes returns one preview attribute per data entry, in data order.
	Attributes() []agent.PreviewAttribute
	Craft() agent.CredentialOffer
}

// Params are the inputs every crafter is built from.
type Params struct {
	ConnectionID           string
	CredentialDefinitionID string
	Data                   models.Attributes
}

// Factory builds a Crafter. A non-nil error makes the registry use Default.
type Factory func(Params) (Crafter, error)

// Default maps every data entry to a text/plain attribute.
type Default struct {
	params Params
}

func NewDefault(p Params) *Default {
	return &Default{params: p}
}

func (d *Default) Attributes() []agent.PreviewAttribute {
	return toPreview(d.params.Data)
}

func (d *Default) Craft() agent.CredentialOffer {
	return envelope(d.params, d.Attributes())
}

func envelope(p Params, attrs []agent.PreviewAttribute) agent.CredentialOffer {
	return agent.CredentialOffer{
		AutoIssue:    true,
		AutoRemove:   false,
		ConnectionID: p.ConnectionID,
		CredDefID:    p.CredentialDefinitionID,
		CredentialPreview: agent.CredentialPreview{
			Type:       agent.PreviewType,
			Attributes: attrs,
		},
	}
}

func toPreview(data models.Attributes) []agent.PreviewAttribute {
	out := make([]agent.PreviewAttribute, 0, len(data))
	for _, attr := range data {
		out = append(out, agent.PreviewAttribute{Name: attr.Name, Value: attr.Value, MimeType: textPlain})
	}
	return out
}

// Decode is the inverse of Attributes.
func Decode(attrs []agent.PreviewAttribute) models.Attributes {
	out := make(models.Attributes, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, models.Attribute{Name: a.Name, Value: a.Value})
	}
	return out
}

// IssueDateAttribute is appended by the issue_date crafter.
const IssueDateAttribute = "issue_date"

// IssueDate behaves like Default but stamps the issuance day when the data
// does not carry one.
type IssueDate struct {
	Default
	now func() time.Time
}

func (c *IssueDate) Attributes() []agent.PreviewAttribute {
	data := c.params.Data
	if !data.Has(IssueDateAttribute) {
		data = data.With(IssueDateAttribute, c.now().UTC().Format(time.DateOnly))
	}
	return toPreview(data)
}

func (c *IssueDate) Craft() agent.CredentialOffer {
	return envelope(c.params, c.Attributes())
}

// NewIssueDateFactory returns the issue_date factory reading time from now.
func NewIssueDateFactory(now func() time.Time) Factory {
	if now == nil {
		now = time.Now
	}
	return func(p Params) (Crafter, error) {
		return &IssueDate{Default: Default{params: p}, now: now}, nil
	}
}

var (
	_ Crafter = (*Default)(nil)
	_ Crafter = (*IssueDate)(nil)
)
