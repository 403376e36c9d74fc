package models

// CreditPool identifies one of the two independent credit balances in a wallet.
type CreditPool string

const (
	PoolAIInterview   CreditPool = "AI_INTERVIEW"
	PoolMentorSession CreditPool = "MENTOR_SESSION"
)

// Wallet is a per-user credit balance split into two pools. Balances never go
// negative; decrements are conditional on sufficient balance.
type Wallet struct {
	UserID               string `json:"userId"`
	AIInterviewCredits   int    `json:"aiInterviewCredits"`
	MentorSessionCredits int    `json:"mentorSessionCredits"`
}

// Identity is a previously-authenticated caller attached to a request or
// connection. The service trusts it; credential checks happen upstream.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}
