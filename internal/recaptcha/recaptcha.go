// Package recaptcha calls Google's siteverify endpoint to score
// booking submissions. An empty secret disables the check; a configured
// secret makes a valid token mandatory, and any transport or decode
// failure is returned as an error so callers can fail closed.
package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salonbook/internal/config"

	"github.com/rs/zerolog"
)

type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    zerolog.Logger
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func New(cfg config.RecaptchaConfig, logger zerolog.Logger) *Verifier {
	return &Verifier{
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger.With().Str("component", "recaptcha").Logger(),
	}
}

func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token string) (bool, float64, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, 0, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("call siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, 0, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, 0, fmt.Errorf("decode siteverify response: %w", err)
	}

	if !result.Success {
		v.logger.Warn().Strs("error_codes", result.ErrorCodes).Msg("siteverify rejected token")
	}

	return result.Success, result.Score, nil
}
