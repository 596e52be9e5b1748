package main

import (
	"errors"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

type options struct {
	Prompt     string
	Tier       string
	Colors     *website.ColorScheme
	Out        string
	BackendDir string
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validColor(s string) error {
	if s == "" || hexColor.MatchString(s) {
		return nil
	}
	return errors.New("use a hex colour like #1e40af")
}

// ask fills in what the flags left empty.
func ask(opts options) (options, error) {
	var (
		useColors bool
		colors    website.ColorScheme
	)
	if opts.Tier == "" {
		opts.Tier = plans.TierFree
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Describe the website").
				Value(&opts.Prompt).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a description is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Tier").
				Options(
					huh.NewOption("Free (3-4 sections)", plans.TierFree),
					huh.NewOption("Pro (5-6 sections)", plans.TierPro),
					huh.NewOption("Business (6-7 sections)", plans.TierBusiness),
				).
				Value(&opts.Tier),
			huh.NewConfirm().
				Title("Pick a colour scheme?").
				Value(&useColors),
		),
		huh.NewGroup(
			huh.NewInput().Title("Primary").Placeholder("#1e40af").Value(&colors.Primary).Validate(validColor),
			huh.NewInput().Title("Secondary").Placeholder("#f59e0b").Value(&colors.Secondary).Validate(validColor),
			huh.NewInput().Title("Accent").Placeholder("#10b981").Value(&colors.Accent).Validate(validColor),
		).WithHideFunc(func() bool { return !useColors }),
		huh.NewGroup(
			huh.NewInput().
				Title("Backend output directory (empty to skip)").
				Value(&opts.BackendDir),
		),
	)
	if err := form.Run(); err != nil {
		return opts, err
	}

	opts.Prompt = strings.TrimSpace(opts.Prompt)
	if useColors && colors != (website.ColorScheme{}) {
		opts.Colors = &colors
	}
	return opts, nil
}
