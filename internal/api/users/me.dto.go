package users

type MeResponse struct {
	User  UserDTO  `json:"user"`
	Plan  PlanDTO  `json:"plan"`
	Usage UsageDTO `json:"usage"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Lastname     string `json:"lastname"`
	Role         string `json:"role"`
	AuthProvider string `json:"auth_provider"`
}

/* ---------- PLAN ---------- */

// PlanDTO limits use -1 for unlimited.
type PlanDTO struct {
	Tier            string `json:"tier"`
	RequestsLimit   int    `json:"requests_limit"`
	ImagesLimit     int    `json:"images_limit"`
	EditsPerWebsite int    `json:"edits_per_website"`
}

/* ---------- USAGE ---------- */

type CounterDTO struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"` // -1 when unlimited
}

type UsageDTO struct {
	Requests CounterDTO `json:"requests"`
	Images   CounterDTO `json:"images"`
}
