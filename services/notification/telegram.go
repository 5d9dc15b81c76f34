package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramProvider delivers requester receipts and operator alerts over the
// Telegram Bot API. Every call is fire-and-forget from the engine's point
// of view: a failed notification is logged and dropped, never retried into
// request state.
type TelegramProvider struct {
	HttpClient *http.Client
	Config     *utils.Config
	BaseURL    string
	logger     *logging.Logger
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func NewTelegramProvider(config *utils.Config, logger *logging.Logger) *TelegramProvider {
	return &TelegramProvider{
		HttpClient: &http.Client{
			Timeout: time.Second * 15,
		},
		Config:  config,
		BaseURL: telegramAPIBase,
		logger:  logger,
	}
}

func (s *TelegramProvider) makeRequest(ctx context.Context, method string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.BaseURL, s.Config.TelegramBotToken, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, errors.New(string(respBody))
	}

	return respBody, nil
}

func (s *TelegramProvider) sendMessage(ctx context.Context, chatID, text string) error {
	_, err := s.makeRequest(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	return err
}

// NotifyRequester tells the requester their payout landed. Reports whether
// delivery succeeded so the caller can gate the operations echo on it.
func (s *TelegramProvider) NotifyRequester(ctx context.Context, targetID string, amount decimal.Decimal, destination string) bool {
	text := fmt.Sprintf("✅ Your withdrawal of %s TON was sent to %s.", amount, destination)
	if err := s.sendMessage(ctx, targetID, text); err != nil {
		s.logger.WithFields(logrus.Fields{
			"target": targetID,
		}).Warn("requester notification failed: ", err)
		return false
	}
	return true
}

// NotifyOperations mirrors a completed payout into the operations channel.
func (s *TelegramProvider) NotifyOperations(ctx context.Context, amount decimal.Decimal, destination string, targetID string) {
	if s.Config.TelegramOpsChat == "" {
		return
	}
	text := fmt.Sprintf("💸 Payout sent: %s TON → %s (user %s)", amount, destination, targetID)
	if err := s.sendMessage(ctx, s.Config.TelegramOpsChat, text); err != nil {
		s.logger.Warn("operations notification failed: ", err)
	}
}

// AlertOperator raises an operator-facing alert in the operations channel.
func (s *TelegramProvider) AlertOperator(ctx context.Context, message string) {
	if s.Config.TelegramOpsChat == "" {
		s.logger.Error("operator alert with no ops chat configured: " + message)
		return
	}
	if err := s.sendMessage(ctx, s.Config.TelegramOpsChat, "🚨 "+message); err != nil {
		s.logger.Error("operator alert failed: ", err)
	}
}
