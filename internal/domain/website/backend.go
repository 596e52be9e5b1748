package website

import "slices"

// Row level security policy kinds.
const (
	RLSUserOwned         = "user_owned"
	RLSAuthenticatedOnly = "authenticated_only"
	RLSAdminOnly         = "admin_only"
	RLSPublicRead        = "public_read"
)

// BackendSpec describes the data backend a generated website needs.
type BackendSpec struct {
	Features           []string            `json:"features"`
	HasAuth            bool                `json:"hasAuth,omitempty"`
	AuthConfig         *AuthConfig         `json:"authConfig,omitempty"`
	Database           Database            `json:"database"`
	Forms              []Form              `json:"forms"`
	APIEndpoints       []Endpoint          `json:"apiEndpoints"`
	EmailNotifications []EmailNotification `json:"emailNotifications,omitempty"`
}

type AuthConfig struct {
	Enabled                  bool     `json:"enabled"`
	Providers                []string `json:"providers"`
	RequireEmailVerification bool     `json:"requireEmailVerification"`
	AllowSignup              bool     `json:"allowSignup"`
	RedirectAfterLogin       string   `json:"redirectAfterLogin"`
	UserProfileFields        []string `json:"userProfileFields"`
	Roles                    []string `json:"roles"`
}

type Database struct {
	Tables []Table `json:"tables"`
}

type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	// HasRLS is nil when the spec did not say; RLS is then enabled.
	HasRLS    *bool  `json:"hasRLS,omitempty"`
	RLSPolicy string `json:"rlsPolicy,omitempty"`
}

// RLSEnabled reports whether row level security applies to the table.
func (t Table) RLSEnabled() bool {
	return t.HasRLS == nil || *t.HasRLS
}

// HasColumn reports whether the table declares a column with that name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description"`
}

type Form struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	TargetTable     string      `json:"targetTable"`
	Fields          []FormField `json:"fields"`
	SubmitButton    string      `json:"submitButton"`
	SuccessMessage  string      `json:"successMessage"`
	RequiresAuth    bool        `json:"requiresAuth,omitempty"`
	HasValidation   bool        `json:"hasValidation,omitempty"`
	ValidationRules []string    `json:"validationRules,omitempty"`
}

// WantsValidation is true when the form asked for a validation block and
// named at least one rule.
func (f Form) WantsValidation() bool {
	return f.HasValidation && len(f.ValidationRules) > 0
}

type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

type Endpoint struct {
	Name         string `json:"name"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	HasRateLimit bool   `json:"hasRateLimit,omitempty"`
}

type EmailNotification struct {
	Trigger     string `json:"trigger"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Clone deep-copies the spec.
func (b BackendSpec) Clone() BackendSpec {
	out := b
	out.Features = slices.Clone(b.Features)
	if b.AuthConfig != nil {
		ac := *b.AuthConfig
		ac.Providers = slices.Clone(ac.Providers)
		ac.UserProfileFields = slices.Clone(ac.UserProfileFields)
		ac.Roles = slices.Clone(ac.Roles)
		out.AuthConfig = &ac
	}
	out.Database.Tables = make([]Table, len(b.Database.Tables))
	for i, t := range b.Database.Tables {
		t.Columns = slices.Clone(t.Columns)
		if t.HasRLS != nil {
			v := *t.HasRLS
			t.HasRLS = &v
		}
		out.Database.Tables[i] = t
	}
	if b.Forms != nil {
		out.Forms = make([]Form, len(b.Forms))
		for i, f := range b.Forms {
			f.ValidationRules = slices.Clone(f.ValidationRules)
			fields := make([]FormField, len(f.Fields))
			for j, fld := range f.Fields {
				fld.Options = slices.Clone(fld.Options)
				fields[j] = fld
			}
			f.Fields = fields
			out.Forms[i] = f
		}
	}
	out.APIEndpoints = slices.Clone(b.APIEndpoints)
	out.EmailNotifications = slices.Clone(b.EmailNotifications)
	return out
}

// GeneratedCode is the output of backend synthesis.
type GeneratedCode struct {
	SQL           string             `json:"sql"`
	Forms         []FormCode         `json:"forms"`
	EdgeFunctions []EdgeFunctionCode `json:"edgeFunctions"`
	AuthSetup     *AuthSetup         `json:"authSetup,omitempty"`
}

type FormCode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

type EdgeFunctionCode struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

type AuthSetup struct {
	LoginComponent  string `json:"loginComponent,omitempty"`
	SignupComponent string `json:"signupComponent,omitempty"`
	AuthContext     string `json:"authContext,omitempty"`
}
