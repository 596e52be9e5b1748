package users

import (
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	domainusers "github.com/redirect10-prog/siteForge-ai/internal/domain/users"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

func BuildUserDTO(u domainusers.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Lastname:     u.Lastname,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
	}
}

func BuildPlanDTO(tier string, table plans.Table) PlanDTO {
	l := table.For(tier)
	return PlanDTO{
		Tier:            plans.NormalizeTier(tier),
		RequestsLimit:   l.Requests,
		ImagesLimit:     l.Images,
		EditsPerWebsite: l.Edits,
	}
}

func BuildCounterDTO(c usage.Counter) CounterDTO {
	out := CounterDTO{Used: c.Used, Limit: c.Limit, Remaining: plans.Unlimited}
	if c.Limit != plans.Unlimited {
		out.Remaining = max(c.Limit-c.Used, 0)
	}
	return out
}

func BuildUsageDTO(u usage.Usage) UsageDTO {
	return UsageDTO{
		Requests: BuildCounterDTO(u.Requests),
		Images:   BuildCounterDTO(u.Images),
	}
}
