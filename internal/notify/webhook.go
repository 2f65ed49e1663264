package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ssd-technologies/trustgate/internal/storage"
	"github.com/ssd-technologies/trustgate/internal/trust"
)

// deliver POSTs the event as JSON to the webhook URL. When the hook has a
// secret, an HMAC-SHA256 signature of the body is sent in
// X-Trustgate-Signature so receivers can verify origin.
func (d *Dispatcher) deliver(hook storage.Webhook, e trust.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trustgate-Event", string(e.Type))
	if hook.Secret != "" {
		mac := hmac.New(sha256.New, []byte(hook.Secret))
		mac.Write(body)
		req.Header.Set("X-Trustgate-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver: unexpected status %d", resp.StatusCode)
	}
	return nil
}
