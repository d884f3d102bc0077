package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/calcbridge-backend/internal/domain/calc"
)

var ErrInvalidWebhook = errors.New("invalid webhook")

// WebhookPayload is the raw progress report. Fields stay raw so presence can
// be told apart from zero values.
type WebhookPayload struct {
	UUID     json.RawMessage `json:"uuid"`
	Progress json.RawMessage `json:"progress"`
	Result   json.RawMessage `json:"result"`
	Error    json.RawMessage `json:"error"`
}

// ValidatedWebhook is a payload that passed ValidateWebhook.
type ValidatedWebhook struct {
	Key    string
	Update calc.ProgressUpdate
}

func (p WebhookPayload) HasError() bool { return present(p.Error) }

func ValidateWebhook(p WebhookPayload) (ValidatedWebhook, error) {
	var out ValidatedWebhook

	if !present(p.UUID) {
		return out, invalidWebhook("uuid is required")
	}
	var key string
	if err := json.Unmarshal(p.UUID, &key); err != nil {
		return out, invalidWebhook("uuid must be a string")
	}
	key = strings.TrimSpace(key)
	// The key is opaque; parsing only checks its shape and lookup uses it
	// as received.
	if _, err := uuid.Parse(key); err != nil || len(key) != 36 {
		return out, invalidWebhook("uuid must be a canonical UUID")
	}
	out.Key = key

	// Zero counts as absent.
	if !present(p.Progress) {
		return out, invalidWebhook("progress is required")
	}
	var progress float64
	if err := json.Unmarshal(p.Progress, &progress); err != nil {
		return out, invalidWebhook("progress must be a number")
	}
	if progress == 0 {
		return out, invalidWebhook("progress is required")
	}
	if math.IsNaN(progress) || progress < 0 || progress > calc.CompleteProgress {
		return out, invalidWebhook(fmt.Sprintf("progress must be in (0, %g]", calc.CompleteProgress))
	}
	out.Update.Progress = progress

	if present(p.Result) {
		out.Update.Result = datatypes.JSON(append([]byte(nil), p.Result...))
	}
	if present(p.Error) {
		out.Update.Error = datatypes.JSON(append([]byte(nil), p.Error...))
	}
	return out, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func invalidWebhook(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidWebhook, msg)
}
