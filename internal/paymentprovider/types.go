package paymentprovider

// Amount сумма платежа в формате ЮKassa.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// CreatePaymentRequest запрос на создание платежа за пакет токенов.
// В metadata передаются pool_id и количество токенов: вебхук вернёт их
// обратно вместе с фактом оплаты.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	PaymentToken string            `json:"payment_token,omitempty"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
}

// Confirmation способ подтверждения платежа.
type Confirmation struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`
}

// CreatePaymentResponse ответ провайдера на создание платежа.
type CreatePaymentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Metadata     map[string]string `json:"metadata"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
}
