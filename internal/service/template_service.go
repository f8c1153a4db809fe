package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// TemplateContext maps placeholder names to their rendered values.
type TemplateContext map[string]string

// TemplateService renders document templates. Templates are plain text
// with {{placeholder}} tokens; rendering fails hard when a token has no
// bound value so a half-filled consent form can never be produced.
type TemplateService struct {
	builtins map[models.DocumentType]builtinTemplate
}

type builtinTemplate struct {
	title string
	body  string
}

// NewTemplateService constructs the service with the built-in template set.
func NewTemplateService() *TemplateService {
	return &TemplateService{builtins: builtinTemplates()}
}

// Render substitutes every placeholder in the template body. Unknown
// tokens fail with MissingPlaceholder carrying the token name.
func (s *TemplateService) Render(body string, ctx TemplateContext) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(body, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		value, ok := ctx[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		return value
	})
	if len(missing) > 0 {
		err := appErrors.Clone(appErrors.ErrMissingPlaceholder,
			fmt.Sprintf("template placeholders missing values: %s", strings.Join(missing, ", ")))
		return "", appErrors.WithDetails(err, map[string]interface{}{"placeholders": missing})
	}
	return rendered, nil
}

// Builtin returns the built-in template for a document type.
func (s *TemplateService) Builtin(docType models.DocumentType) (title, body string, err error) {
	tpl, ok := s.builtins[docType]
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no built-in template for %s", docType))
	}
	return tpl.title, tpl.body, nil
}

// BuildContext assembles the placeholder values for one approval from
// the event configuration and the student/parent/school display fields.
func (s *TemplateService) BuildContext(cfg *models.EventConfig, person *models.PersonContext) TemplateContext {
	ctx := TemplateContext{
		"event_name":        cfg.Name,
		"event_description": cfg.Description,
		"event_amount":      cfg.Amount,
		"currency":          cfg.Currency,
		"due_date":          cfg.DueDate.Format("2 January 2006"),
	}
	if cfg.EventDate != nil {
		ctx["event_date"] = cfg.EventDate.Format("2 January 2006")
	} else {
		ctx["event_date"] = "to be announced"
	}
	if person != nil {
		ctx["student_name"] = person.StudentName
		ctx["student_id"] = person.StudentNumber
		ctx["student_class"] = person.StudentClass
		ctx["parent_name"] = person.ParentName
		ctx["parent_phone"] = person.ParentPhone
		ctx["school_name"] = person.SchoolName
		ctx["school_address"] = person.SchoolAddress
	}
	return ctx
}

func builtinTemplates() map[models.DocumentType]builtinTemplate {
	return map[models.DocumentType]builtinTemplate{
		models.DocumentTypeApprovalForm: {
			title: "Parental Approval Form",
			body: `{{school_name}}
{{school_address}}

PARENTAL APPROVAL FORM

Event: {{event_name}}
{{event_description}}

Date: {{event_date}}
Contribution: {{currency}} {{event_amount}}, due {{due_date}}

I, {{parent_name}} ({{parent_phone}}), parent/guardian of {{student_name}}
(admission no. {{student_id}}, class {{student_class}}), hereby approve the
participation of my child in the above event and the associated contribution.`,
		},
		models.DocumentTypeConsentForm: {
			title: "Consent Form",
			body: `{{school_name}}

CONSENT FORM

Event: {{event_name}} on {{event_date}}

I, {{parent_name}}, parent/guardian of {{student_name}} of class
{{student_class}}, give my consent for my child to take part in
{{event_name}}. {{event_description}}`,
		},
		models.DocumentTypePaymentAgreement: {
			title: "Payment Agreement",
			body: `{{school_name}}
{{school_address}}

PAYMENT AGREEMENT

I, {{parent_name}} ({{parent_phone}}), agree to pay {{currency}}
{{event_amount}} for {{event_name}} on behalf of {{student_name}}
(admission no. {{student_id}}) no later than {{due_date}}.`,
		},
		models.DocumentTypeLiabilityWaiver: {
			title: "Liability Waiver",
			body: `{{school_name}}

LIABILITY WAIVER

Event: {{event_name}} on {{event_date}}
{{event_description}}

I, {{parent_name}}, parent/guardian of {{student_name}} of class
{{student_class}}, acknowledge the nature of the above event and release
{{school_name}} from liability for injuries arising from ordinary
participation, except where caused by negligence of the school.`,
		},
	}
}
