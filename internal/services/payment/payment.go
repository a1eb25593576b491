// Package payment связывает покупку пакетов токенов с провайдером
// ЮKassa: создаёт платежи и обрабатывает уведомления вебхука.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/plan-pool/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/plan-pool/internal/models"
	"github.com/magabrotheeeer/plan-pool/internal/paymentprovider"
	"github.com/magabrotheeeer/plan-pool/internal/storage/repository"
)

// tokenPriceKopecks цена одного токена в копейках.
const tokenPriceKopecks = 2

// Provider описывает клиент платёжного провайдера.
type Provider interface {
	CreatePayment(reqParams paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
}

// TokenCrediter зачисляет оплаченный пакет токенов на пул.
type TokenCrediter interface {
	CreditPurchasedTokens(ctx context.Context, poolID, paymentID string, amount int) (int, error)
}

// TokenCrediterFunc адаптер, позволяющий использовать функцию как TokenCrediter.
type TokenCrediterFunc func(ctx context.Context, poolID, paymentID string, amount int) (int, error)

// CreditPurchasedTokens вызывает f(ctx, poolID, paymentID, amount).
func (f TokenCrediterFunc) CreditPurchasedTokens(ctx context.Context, poolID, paymentID string, amount int) (int, error) {
	return f(ctx, poolID, paymentID, amount)
}

// PaymentService создаёт платежи за пакеты токенов и зачисляет их
// после подтверждения провайдером.
type PaymentService struct {
	provider  Provider
	crediter  TokenCrediter
	returnURL string
	log       *slog.Logger
}

// New создает новый экземпляр PaymentService.
func New(provider Provider, crediter TokenCrediter, returnURL string, log *slog.Logger) *PaymentService {
	return &PaymentService{
		provider:  provider,
		crediter:  crediter,
		returnURL: returnURL,
		log:       log,
	}
}

// priceFor возвращает стоимость пакета в формате провайдера ("12.34").
func priceFor(tokens int) string {
	total := tokens * tokenPriceKopecks
	return fmt.Sprintf("%d.%02d", total/100, total%100)
}

// CreateTokenPayment создаёт у провайдера платёж за пакет токенов.
// pool_id и количество токенов уходят в metadata и возвращаются
// вебхуком вместе с фактом оплаты.
func (s *PaymentService) CreateTokenPayment(poolID string, amount int, paymentToken string) (*models.PurchaseResult, error) {
	const op = "services.payment.CreateTokenPayment"

	req := paymentprovider.CreatePaymentRequest{
		Amount: paymentprovider.Amount{
			Value:    priceFor(amount),
			Currency: "RUB",
		},
		PaymentToken: paymentToken,
		Capture:      true,
		Description:  fmt.Sprintf("Token pack: %d tokens", amount),
		Metadata: map[string]string{
			"pool_id": poolID,
			"tokens":  strconv.Itoa(amount),
		},
		Confirmation: &paymentprovider.Confirmation{
			Type:      "redirect",
			ReturnURL: s.returnURL,
		},
	}

	resp, err := s.provider.CreatePayment(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment created",
		slog.String("payment_id", resp.ID),
		slog.String("pool_id", poolID),
		slog.Int("tokens", amount))
	result := &models.PurchaseResult{
		PaymentID: resp.ID,
		Status:    resp.Status,
		Tokens:    amount,
	}
	if resp.Confirmation != nil {
		result.ConfirmationURL = resp.Confirmation.ReturnURL
	}
	return result, nil
}

// ProcessWebhookEvent обрабатывает уведомление провайдера. Токены
// зачисляются только по payment.succeeded; повтор того же уведомления
// зачисления не удваивает.
func (s *PaymentService) ProcessWebhookEvent(ctx context.Context, payload *paymentwebhook.Payload) error {
	const op = "services.payment.ProcessWebhookEvent"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", payload.Object.ID))

	if strings.ToLower(payload.Event) != paymentwebhook.PaymentSucceeded {
		log.Info("skipping non-success event", slog.String("event", payload.Event))
		return nil
	}

	poolID := payload.Object.Metadata["pool_id"]
	if poolID == "" {
		return fmt.Errorf("%s: payload has no pool_id", op)
	}
	tokens, err := strconv.Atoi(payload.Object.Metadata["tokens"])
	if err != nil || tokens <= 0 {
		return fmt.Errorf("%s: payload has invalid tokens value %q", op, payload.Object.Metadata["tokens"])
	}

	_, err = s.crediter.CreditPurchasedTokens(ctx, poolID, payload.Object.ID, tokens)
	if errors.Is(err, repository.ErrDuplicatePurchase) {
		log.Info("payment already credited")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
