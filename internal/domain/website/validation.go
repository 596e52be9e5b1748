package website

import (
	"fmt"
	"strings"
)

// Category names one independent validation check.
type Category string

const (
	CategoryNavigation Category = "navigation"
	CategoryButtons    Category = "buttons"
	CategorySecurity   Category = "security"
	CategoryForms      Category = "forms"
)

// ParseCategory maps a wire name to a Category.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryNavigation, CategoryButtons, CategorySecurity, CategoryForms:
		return c, true
	}
	return "", false
}

// Fix kinds.
const (
	FixRetargetNavigation = "retarget_navigation"
	FixRebuildNavigation  = "rebuild_navigation"
	FixSetCTAAction       = "set_cta_action"
	FixClearCTAAction     = "clear_cta_action"
	FixEnableRLS          = "enable_rls"
	FixSetRLSPolicy       = "set_rls_policy"
	FixEnableAuth         = "enable_auth"
	FixEnableValidation   = "enable_validation"
	FixSetFormType        = "set_form_type"
)

// Fix is one concrete remediation. Index addresses a section or navigation
// entry; Table and Form address backend items.
type Fix struct {
	Type   string `json:"type"`
	Index  int    `json:"index"`
	Table  string `json:"table,omitempty"`
	Form   string `json:"form,omitempty"`
	Action string `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
}

type ValidationCategory struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
	Fixes  []Fix    `json:"fixes"`
}

type ValidationResult struct {
	Navigation ValidationCategory `json:"navigation"`
	Buttons    ValidationCategory `json:"buttons"`
	Security   ValidationCategory `json:"security"`
	Forms      ValidationCategory `json:"forms"`
}

// Get returns the record for one category.
func (r ValidationResult) Get(c Category) ValidationCategory {
	switch c {
	case CategoryNavigation:
		return r.Navigation
	case CategoryButtons:
		return r.Buttons
	case CategorySecurity:
		return r.Security
	default:
		return r.Forms
	}
}

func (r *ValidationResult) set(c Category, v ValidationCategory) {
	switch c {
	case CategoryNavigation:
		r.Navigation = v
	case CategoryButtons:
		r.Buttons = v
	case CategorySecurity:
		r.Security = v
	case CategoryForms:
		r.Forms = v
	}
}

// Passed is true when every category passed.
func (r ValidationResult) Passed() bool {
	return r.Navigation.Passed && r.Buttons.Passed && r.Security.Passed && r.Forms.Passed
}

type checker struct {
	issues []string
	fixes  []Fix
}

func (c *checker) add(fix Fix, format string, args ...any) {
	c.issues = append(c.issues, fmt.Sprintf(format, args...))
	c.fixes = append(c.fixes, fix)
}

func (c *checker) result() ValidationCategory {
	return ValidationCategory{
		Passed: len(c.issues) == 0,
		Issues: append([]string{}, c.issues...),
		Fixes:  append([]Fix{}, c.fixes...),
	}
}

// Validate runs the four checks over w.
func Validate(w GeneratedWebsite) ValidationResult {
	return ValidationResult{
		Navigation: checkNavigation(w),
		Buttons:    checkButtons(w),
		Security:   checkSecurity(w),
		Forms:      checkForms(w),
	}
}

func anchors(sections []Section) map[string]bool {
	m := make(map[string]bool, len(sections))
	for _, s := range sections {
		m[Anchor(s.Name)] = true
	}
	return m
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "mailto:") ||
		strings.HasPrefix(target, "tel:")
}

// closestAnchor picks the section anchor matching label, else the first one.
func closestAnchor(sections []Section, label string) string {
	want := strings.ToLower(strings.TrimSpace(label))
	for _, s := range sections {
		if strings.ToLower(s.Name) == want || strings.ToLower(s.Heading) == want {
			return Anchor(s.Name)
		}
	}
	for _, s := range sections {
		name := strings.ToLower(s.Name)
		if want != "" && (strings.Contains(name, want) || strings.Contains(want, name)) {
			return Anchor(s.Name)
		}
	}
	if len(sections) == 0 {
		return "#"
	}
	return Anchor(sections[0].Name)
}

// conversionAnchor is where an orphaned call to action should scroll to.
func conversionAnchor(sections []Section) string {
	for _, want := range []string{"contact", "cta", "pricing"} {
		for _, s := range sections {
			if strings.ToLower(s.Name) == want {
				return Anchor(s.Name)
			}
		}
	}
	if len(sections) == 0 {
		return "#"
	}
	return Anchor(sections[len(sections)-1].Name)
}

func checkNavigation(w GeneratedWebsite) ValidationCategory {
	var c checker
	if len(w.Navigation) == 0 && len(w.Sections) > 0 {
		c.add(Fix{Type: FixRebuildNavigation}, "Navigation is empty")
		return c.result()
	}
	known := anchors(w.Sections)
	for i, n := range w.Navigation {
		if isURL(n.Target) {
			continue
		}
		if n.Target == "" || n.Target == "#" || !known[n.Target] {
			c.add(Fix{Type: FixRetargetNavigation, Index: i, Value: closestAnchor(w.Sections, n.Label)},
				"Navigation item %q points to missing section %q", n.Label, n.Target)
		}
	}
	return c.result()
}

func checkButtons(w GeneratedWebsite) ValidationCategory {
	var c checker
	known := anchors(w.Sections)
	for i, s := range w.Sections {
		switch {
		case s.CTA == "" && s.CTAAction != "":
			c.add(Fix{Type: FixClearCTAAction, Index: i},
				"Section %q has a CTA action but no button text", s.Name)
		case s.CTA != "" && s.CTAAction == "":
			c.add(Fix{Type: FixSetCTAAction, Index: i, Action: ActionScroll, Value: conversionAnchor(w.Sections)},
				"Button %q in section %q has no action", s.CTA, s.Name)
		case s.CTA != "" && s.CTAAction == ActionLink && !isURL(s.CTATarget):
			c.add(Fix{Type: FixSetCTAAction, Index: i, Action: ActionScroll, Value: conversionAnchor(w.Sections)},
				"Link button %q in section %q has no valid URL", s.CTA, s.Name)
		case s.CTA != "" && s.CTAAction == ActionScroll && !known[s.CTATarget]:
			c.add(Fix{Type: FixSetCTAAction, Index: i, Action: ActionScroll, Value: conversionAnchor(w.Sections)},
				"Button %q in section %q scrolls to missing section %q", s.CTA, s.Name, s.CTATarget)
		}
	}
	return c.result()
}

func checkSecurity(w GeneratedWebsite) ValidationCategory {
	var c checker
	b := w.Backend
	if b == nil {
		return c.result()
	}
	for _, t := range b.Database.Tables {
		if !t.RLSEnabled() {
			c.add(Fix{Type: FixEnableRLS, Table: t.Name},
				"Table %q has row level security disabled", t.Name)
			continue
		}
		if t.HasColumn("user_id") && t.RLSPolicy != RLSUserOwned && t.RLSPolicy != RLSAdminOnly {
			c.add(Fix{Type: FixSetRLSPolicy, Table: t.Name, Value: RLSUserOwned},
				"Table %q stores user data but is not owner scoped", t.Name)
		}
	}
	needsAuth := false
	for _, e := range b.APIEndpoints {
		if e.RequiresAuth {
			needsAuth = true
		}
	}
	for _, f := range b.Forms {
		if f.RequiresAuth {
			needsAuth = true
		}
	}
	if needsAuth && (b.AuthConfig == nil || !b.AuthConfig.Enabled) {
		c.add(Fix{Type: FixEnableAuth}, "Endpoints require authentication but auth is not configured")
	}
	return c.result()
}

func checkForms(w GeneratedWebsite) ValidationCategory {
	var c checker
	for i, s := range w.Sections {
		if s.HasForm && s.FormType == "" {
			c.add(Fix{Type: FixSetFormType, Index: i, Value: "contact"},
				"Section %q has a form without a form type", s.Name)
		}
	}
	if w.Backend == nil {
		return c.result()
	}
	for _, f := range w.Backend.Forms {
		if f.WantsValidation() {
			continue
		}
		if rules := validationRulesFor(f); len(rules) > 0 {
			c.add(Fix{Type: FixEnableValidation, Form: f.ID, Value: strings.Join(rules, ",")},
				"Form %q accepts input without validation", f.Name)
		}
	}
	return c.result()
}

func validationRulesFor(f Form) []string {
	var rules []string
	seen := map[string]bool{}
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			rules = append(rules, r)
		}
	}
	for _, fld := range f.Fields {
		if fld.Required {
			add("required")
		}
		switch fld.Type {
		case "email":
			add("email")
		case "password":
			add("password_min_length")
		}
	}
	return rules
}

// ApplyFixes applies every fix of one category to a copy of w and returns
// the fixed copy with its validation, the category marked passed.
func ApplyFixes(w GeneratedWebsite, category Category) (GeneratedWebsite, ValidationResult) {
	out := w.Clone()
	for _, f := range Validate(w).Get(category).Fixes {
		applyFix(&out, f)
	}
	res := Validate(out)
	res.set(category, ValidationCategory{Passed: true, Issues: []string{}, Fixes: []Fix{}})
	return out, res
}

func applyFix(w *GeneratedWebsite, f Fix) {
	switch f.Type {
	case FixRebuildNavigation:
		w.Navigation = NavigationFor(w.Sections)
	case FixRetargetNavigation:
		if f.Index >= 0 && f.Index < len(w.Navigation) {
			w.Navigation[f.Index].Target = f.Value
			w.Navigation[f.Index].Type = NavScroll
		}
	case FixSetCTAAction:
		if f.Index >= 0 && f.Index < len(w.Sections) {
			w.Sections[f.Index].CTAAction = f.Action
			w.Sections[f.Index].CTATarget = f.Value
		}
	case FixClearCTAAction:
		if f.Index >= 0 && f.Index < len(w.Sections) {
			w.Sections[f.Index].CTAAction = ""
			w.Sections[f.Index].CTATarget = ""
		}
	case FixSetFormType:
		if f.Index >= 0 && f.Index < len(w.Sections) {
			w.Sections[f.Index].FormType = f.Value
		}
	case FixEnableRLS, FixSetRLSPolicy:
		if w.Backend == nil {
			return
		}
		for i := range w.Backend.Database.Tables {
			t := &w.Backend.Database.Tables[i]
			if t.Name != f.Table {
				continue
			}
			on := true
			t.HasRLS = &on
			if f.Type == FixSetRLSPolicy {
				t.RLSPolicy = f.Value
			}
		}
	case FixEnableAuth:
		if w.Backend == nil {
			return
		}
		w.Backend.HasAuth = true
		if w.Backend.AuthConfig == nil {
			w.Backend.AuthConfig = &AuthConfig{
				Providers:          []string{"email"},
				AllowSignup:        true,
				RedirectAfterLogin: "/",
				UserProfileFields:  []string{},
				Roles:              []string{"user"},
			}
		}
		w.Backend.AuthConfig.Enabled = true
	case FixEnableValidation:
		if w.Backend == nil {
			return
		}
		for i := range w.Backend.Forms {
			if w.Backend.Forms[i].ID == f.Form {
				w.Backend.Forms[i].HasValidation = true
				w.Backend.Forms[i].ValidationRules = strings.Split(f.Value, ",")
			}
		}
	}
}
