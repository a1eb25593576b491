package models

import "time"

// InvitationResult результат создания приглашения. Токен возвращается
// один раз — дальше он живёт только в письме приглашённому.
type InvitationResult struct {
	InvitationID    string    `json:"invitation_id"`
	InvitationToken string    `json:"invitation_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// AcceptResult результат принятия приглашения.
type AcceptResult struct {
	MembershipID string `json:"membership_id"`
	Role         string `json:"role"`
	Status       string `json:"status"`
}

// SpendResult результат списания токенов.
type SpendResult struct {
	NewBalance int `json:"new_balance"`
}

// PurchaseResult результат инициации покупки токенов. Зачисление
// происходит позже, когда провайдер подтвердит платёж вебхуком.
type PurchaseResult struct {
	PaymentID       string `json:"payment_id"`
	Status          string `json:"status"`
	Tokens          int    `json:"tokens"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}
