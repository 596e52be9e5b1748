// Package normalize coerces loosely shaped model output into a
// website.GeneratedWebsite.
//
// Every tolerated spelling of a field lives in one of the decision tables
// below: for each target field, the ordered list of source keys tried, first
// match wins. Nothing outside the tables knows about alternative key names.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

// SchemaError is returned when the input is not a JSON object at all.
type SchemaError struct {
	Got string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("normalize: expected a JSON object, got %s", e.Got)
}

// Rule maps one target field to its candidate source keys.
type Rule struct {
	Target  string
	Sources []string
}

// SectionRules is the decision table for section text fields.
var SectionRules = []Rule{
	{Target: "name", Sources: []string{"name", "title"}},
	{Target: "heading", Sources: []string{"heading", "title"}},
	{Target: "content", Sources: []string{"content"}},
	{Target: "cta", Sources: []string{"cta", "callToAction"}},
	{Target: "ctaAction", Sources: []string{"ctaAction"}},
	{Target: "ctaTarget", Sources: []string{"ctaTarget"}},
	{Target: "imagePrompt", Sources: []string{"imagePrompt"}},
	{Target: "generatedImage", Sources: []string{"generatedImage"}},
	{Target: "formType", Sources: []string{"formType"}},
}

// SectionFlagRules decides hasForm: an explicit boolean first, then the
// presence of a form payload.
var SectionFlagRules = []Rule{
	{Target: "hasForm", Sources: []string{"hasForm", "form"}},
}

// NavigationRules is the decision table for navigation entries.
var NavigationRules = []Rule{
	{Target: "label", Sources: []string{"label", "title"}},
	{Target: "target", Sources: []string{"target", "link", "href"}},
	{Target: "type", Sources: []string{"type"}},
}

// Defaults for navigation fields the model left out.
const (
	defaultNavLabel  = "Link"
	defaultNavTarget = "#"
)

// ExplanationKeys are the rationale fields copied from an explanation object.
var ExplanationKeys = []string{
	"websiteType", "audience", "sectionRationale", "copyStrategy", "conversionGoal", "tierImpact",
}

// Website normalizes a decoded JSON value.
func Website(raw any) (website.GeneratedWebsite, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return website.GeneratedWebsite{}, &SchemaError{Got: kindOf(raw)}
	}

	w := website.GeneratedWebsite{
		WebsiteType:      websiteType(obj["websiteType"]),
		TargetAudience:   text(obj["targetAudience"]),
		Sections:         []website.Section{},
		SuggestedPrompts: []string{},
	}

	if list, ok := obj["sections"].([]any); ok {
		for i, item := range list {
			w.Sections = append(w.Sections, section(asObject(item), i))
		}
	}

	if list, ok := obj["navigation"].([]any); ok {
		w.Navigation = make([]website.NavigationItem, 0, len(list))
		for _, item := range list {
			w.Navigation = append(w.Navigation, navigation(asObject(item)))
		}
	} else {
		w.Navigation = website.NavigationFor(w.Sections)
	}

	if list, ok := obj["suggestedPrompts"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				w.SuggestedPrompts = append(w.SuggestedPrompts, s)
			}
		}
	}

	w.InternalExplanation = explanation(obj["internalExplanation"], w.WebsiteType, w.TargetAudience)
	w.Backend = backend(obj["backend"])
	return w, nil
}

// JSON decodes data and normalizes it.
func JSON(data []byte) (website.GeneratedWebsite, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return website.GeneratedWebsite{}, fmt.Errorf("normalize: %w", err)
	}
	return Website(raw)
}

// Section normalizes a single section value, for callers that receive one
// section on its own. index only feeds the synthesized name.
func Section(raw any, index int) website.Section {
	return section(asObject(raw), index)
}

func section(obj map[string]any, index int) website.Section {
	v := resolve(obj, SectionRules)

	name := v["name"]
	if name == "" {
		name = fmt.Sprintf("Section %d", index+1)
	}
	heading := v["heading"]
	if heading == "" {
		heading = name
	}
	content, _ := obj["content"].(string)

	return website.Section{
		Name:           name,
		Heading:        heading,
		Content:        content,
		CTA:            v["cta"],
		CTAAction:      v["ctaAction"],
		CTATarget:      v["ctaTarget"],
		ImagePrompt:    v["imagePrompt"],
		GeneratedImage: v["generatedImage"],
		HasForm:        flag(obj, SectionFlagRules[0].Sources),
		FormType:       v["formType"],
	}
}

func navigation(obj map[string]any) website.NavigationItem {
	v := resolve(obj, NavigationRules)
	item := website.NavigationItem{Label: v["label"], Target: v["target"], Type: v["type"]}
	if item.Label == "" {
		item.Label = defaultNavLabel
	}
	if item.Target == "" {
		item.Target = defaultNavTarget
	}
	if item.Type == "" {
		item.Type = website.NavScroll
	}
	return item
}

// resolve applies a decision table to obj. Blank values count as missing.
func resolve(obj map[string]any, rules []Rule) map[string]string {
	out := make(map[string]string, len(rules))
	for _, r := range rules {
		for _, key := range r.Sources {
			if s := strings.TrimSpace(text(obj[key])); s != "" {
				out[r.Target] = s
				break
			}
		}
	}
	return out
}

// flag takes the first source that is a boolean, else true when any later
// source holds a non-empty payload.
func flag(obj map[string]any, sources []string) bool {
	for i, key := range sources {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b
		}
		if i > 0 && truthy(v) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}

func websiteType(v any) string {
	t := strings.ToLower(strings.TrimSpace(text(v)))
	if website.KnownType(t) {
		return t
	}
	return website.TypeLanding
}

func explanation(v any, websiteType, audience string) website.InternalExplanation {
	if obj, ok := v.(map[string]any); ok {
		vals := make(map[string]string, len(ExplanationKeys))
		for _, k := range ExplanationKeys {
			vals[k] = text(obj[k])
		}
		return website.InternalExplanation{
			WebsiteType:      vals["websiteType"],
			Audience:         vals["audience"],
			SectionRationale: vals["sectionRationale"],
			CopyStrategy:     vals["copyStrategy"],
			ConversionGoal:   vals["conversionGoal"],
			TierImpact:       vals["tierImpact"],
		}
	}
	ex := website.InternalExplanation{WebsiteType: websiteType, Audience: audience}
	if s, ok := v.(string); ok {
		ex.SectionRationale = s
	}
	return ex
}

// backend keeps the payload only when it decodes cleanly and carries a
// database.tables list.
func backend(v any) *website.BackendSpec {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	db, ok := obj["database"].(map[string]any)
	if !ok {
		return nil
	}
	if _, ok := db["tables"].([]any); !ok {
		return nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	var spec website.BackendSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil
	}
	if spec.Features == nil {
		spec.Features = []string{}
	}
	if spec.Forms == nil {
		spec.Forms = []website.Form{}
	}
	if spec.APIEndpoints == nil {
		spec.APIEndpoints = []website.Endpoint{}
	}
	return &spec
}

func asObject(v any) map[string]any {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

// text renders scalars as strings; anything else is empty.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
