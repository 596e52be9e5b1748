package website

import "slices"

// Website types the generator knows how to lay out.
const (
	TypeSaaS      = "saas"
	TypeEcommerce = "ecommerce"
	TypePortfolio = "portfolio"
	TypeAgency    = "agency"
	TypeBlog      = "blog"
	TypeLanding   = "landing"
)

// KnownType reports whether t is one of the supported website types.
func KnownType(t string) bool {
	switch t {
	case TypeSaaS, TypeEcommerce, TypePortfolio, TypeAgency, TypeBlog, TypeLanding:
		return true
	}
	return false
}

// Navigation item types.
const (
	NavScroll = "scroll"
	NavLink   = "link"
	NavButton = "button"
)

// CTA actions.
const (
	ActionScroll = "scroll"
	ActionLink   = "link"
	ActionModal  = "modal"
	ActionForm   = "form"
)

type GeneratedWebsite struct {
	WebsiteType         string              `json:"websiteType"`
	TargetAudience      string              `json:"targetAudience"`
	Sections            []Section           `json:"sections"`
	Navigation          []NavigationItem    `json:"navigation"`
	SuggestedPrompts    []string            `json:"suggestedPrompts"`
	Backend             *BackendSpec        `json:"backend,omitempty"`
	InternalExplanation InternalExplanation `json:"internalExplanation"`
}

// Section is one content block. Its identity is its position in
// GeneratedWebsite.Sections; names may repeat.
type Section struct {
	Name           string `json:"name"`
	Heading        string `json:"heading"`
	Content        string `json:"content"`
	CTA            string `json:"cta,omitempty"`
	CTAAction      string `json:"ctaAction,omitempty"`
	CTATarget      string `json:"ctaTarget,omitempty"`
	ImagePrompt    string `json:"imagePrompt,omitempty"`
	GeneratedImage string `json:"generatedImage,omitempty"`
	HasForm        bool   `json:"hasForm,omitempty"`
	FormType       string `json:"formType,omitempty"`
}

type NavigationItem struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type InternalExplanation struct {
	WebsiteType      string `json:"websiteType"`
	Audience         string `json:"audience"`
	SectionRationale string `json:"sectionRationale"`
	CopyStrategy     string `json:"copyStrategy"`
	ConversionGoal   string `json:"conversionGoal"`
	TierImpact       string `json:"tierImpact"`
}

// ColorScheme is the optional palette a caller asks the images to follow.
type ColorScheme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// Clone returns a deep copy, so snapshots never share slices.
func (w GeneratedWebsite) Clone() GeneratedWebsite {
	out := w
	out.Sections = slices.Clone(w.Sections)
	out.Navigation = slices.Clone(w.Navigation)
	out.SuggestedPrompts = slices.Clone(w.SuggestedPrompts)
	if w.Backend != nil {
		b := w.Backend.Clone()
		out.Backend = &b
	}
	return out
}

// ImagePromptCount is the number of sections that will be illustrated.
func (w GeneratedWebsite) ImagePromptCount() int {
	n := 0
	for _, s := range w.Sections {
		if s.ImagePrompt != "" {
			n++
		}
	}
	return n
}
