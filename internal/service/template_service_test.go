package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

func templateFixtureContext() TemplateContext {
	eventDate := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	cfg := &models.EventConfig{
		Name:        "Sports Day",
		Description: "Annual inter-house games.",
		Amount:      "1500.00",
		Currency:    "KES",
		EventDate:   &eventDate,
		DueDate:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	person := &models.PersonContext{
		StudentName:   "Amina Odhiambo",
		StudentNumber: "ADM-0042",
		StudentClass:  "Grade 6 Blue",
		ParentName:    "Grace Odhiambo",
		ParentPhone:   "+254700000001",
		SchoolName:    "Sunrise Academy",
		SchoolAddress: "P.O. Box 123, Nairobi",
	}
	return NewTemplateService().BuildContext(cfg, person)
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	svc := NewTemplateService()
	out, err := svc.Render("Dear {{parent_name}}, {{event_name}} costs {{currency}} {{event_amount}}.", templateFixtureContext())
	require.NoError(t, err)
	require.Equal(t, "Dear Grace Odhiambo, Sports Day costs KES 1500.00.", out)
}

func TestRenderFailsOnUnboundPlaceholder(t *testing.T) {
	svc := NewTemplateService()
	_, err := svc.Render("Hello {{parent_name}}, see {{unknown_token}}.", templateFixtureContext())
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrMissingPlaceholder.Code, appErr.Code)
	require.Contains(t, appErr.Message, "unknown_token")
}

func TestBuiltinTemplatesRenderCompletely(t *testing.T) {
	svc := NewTemplateService()
	ctx := templateFixtureContext()
	for _, docType := range []models.DocumentType{
		models.DocumentTypeApprovalForm,
		models.DocumentTypeConsentForm,
		models.DocumentTypePaymentAgreement,
		models.DocumentTypeLiabilityWaiver,
	} {
		title, body, err := svc.Builtin(docType)
		require.NoError(t, err)
		require.NotEmpty(t, title)

		out, err := svc.Render(body, ctx)
		require.NoError(t, err, "built-in %s must render with the standard context", docType)
		require.False(t, strings.Contains(out, "{{"), "no tokens may survive rendering")
		require.Contains(t, out, "Sunrise Academy")
	}
}

func TestBuiltinUnknownType(t *testing.T) {
	svc := NewTemplateService()
	_, _, err := svc.Builtin(models.DocumentTypeCustom)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBuildContextWithoutEventDate(t *testing.T) {
	svc := NewTemplateService()
	cfg := &models.EventConfig{Name: "Library Fund", DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	ctx := svc.BuildContext(cfg, nil)
	require.Equal(t, "to be announced", ctx["event_date"])
}
