package models

// DummyInvitation используется для приёма данных запроса на создание
// приглашения, прежде чем конвертировать их в Invitation.
type DummyInvitation struct {
	Email          string `json:"email" validate:"required,email"` // Email приглашённого
	AgeAttestation bool   `json:"age_attestation"`                 // Подтверждение, что приглашённому 13+
}

// DummyAccept данные запроса на принятие приглашения.
type DummyAccept struct {
	Token       string `json:"token" validate:"required"` // Токен из письма-приглашения
	AcceptTerms bool   `json:"accept_terms"`              // Принятие условий использования
	AgeVerified bool   `json:"age_verified"`              // Подтверждение возраста приглашённым
}

// DummySpend данные запроса на списание токенов.
type DummySpend struct {
	Amount    int    `json:"amount" validate:"required,gt=0"` // Количество токенов (>0)
	UsageType string `json:"usage_type" validate:"required"`  // Вид использования, например chat
}

// DummyPurchase данные запроса на докупку токенов.
type DummyPurchase struct {
	Amount       int    `json:"amount" validate:"required,gt=0"`  // Количество токенов (>0)
	PaymentToken string `json:"payment_token" validate:"required"` // Платёжный токен провайдера
}

// DummyCreatePlan данные запроса на создание плана.
type DummyCreatePlan struct {
	PlanType string `json:"plan_type" validate:"required,oneof=visitor standard ministry business enterprise"`
}
