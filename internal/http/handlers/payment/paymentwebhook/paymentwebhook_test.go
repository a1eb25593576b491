package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockService реализует интерфейс paymentwebhook.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ProcessWebhookEvent(ctx context.Context, payload *Payload) error {
	return m.Called(ctx, payload).Error(0)
}

const testSecret = "webhook-secret"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	succeededBody := `{"event": "payment.succeeded", "object": {"id": "pay-1", "status": "succeeded", "metadata": {"pool_id": "pool-1", "tokens": "10000"}}}`

	tests := []struct {
		name           string
		body           string
		signature      string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:      "успешное уведомление",
			body:      succeededBody,
			signature: sign(succeededBody),
			setupMock: func(m *MockService) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.MatchedBy(func(p *Payload) bool {
					return p.Event == PaymentSucceeded && p.Object.ID == "pay-1"
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "нет подписи",
			body:           succeededBody,
			signature:      "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "неверная подпись",
			body:           succeededBody,
			signature:      "bm90LWEtc2lnbmF0dXJl",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "некорректный JSON",
			body:           `{"event": `,
			signature:      sign(`{"event": `),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "неизвестное событие игнорируется",
			body:      `{"event": "deal.created", "object": {"id": "pay-1"}}`,
			signature: sign(`{"event": "deal.created", "object": {"id": "pay-1"}}`),
			setupMock: func(m *MockService) {
				// сервис не должен вызываться
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "ошибка обработки",
			body:      succeededBody,
			signature: sign(succeededBody),
			setupMock: func(m *MockService) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(errors.New("credit failed"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService, testSecret)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Api-Signature", tt.signature)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
			if tt.expectedStatus == http.StatusUnauthorized || strings.Contains(tt.name, "игнорируется") {
				mockService.AssertNotCalled(t, "ProcessWebhookEvent", mock.Anything, mock.Anything)
			}
		})
	}
}
