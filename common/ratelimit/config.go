package ratelimit

import "github.com/lyzr/adstudio/common/config"

// Policy is a request budget per window
type Policy struct {
	Limit         int64
	WindowSeconds int
}

// Policies holds the write budget for each author kind
type Policies struct {
	User Policy
	LLM  Policy
}

// PoliciesFromConfig builds the write policies from service config
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	return Policies{
		User: Policy{Limit: cfg.UserWrites, WindowSeconds: cfg.WindowSeconds},
		LLM:  Policy{Limit: cfg.LLMWrites, WindowSeconds: cfg.WindowSeconds},
	}
}

// For returns the policy for an author; unknown authors get the stricter one
func (p Policies) For(actor string) Policy {
	switch actor {
	case "user":
		return p.User
	case "llm":
		return p.LLM
	}
	if p.User.Limit < p.LLM.Limit {
		return p.User
	}
	return p.LLM
}
