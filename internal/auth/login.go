// Package auth obtains a bearer token from the reservation site's login
// flow: scrape the CSRF token from the login page, post the credentials,
// then exchange the session for an OAuth access token. The rest of the
// bridge only ever sees the resulting token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token"[^>]*value="([^"]+)"`)

// Login performs the full login flow against host and returns the access
// token. The session cookies only live for the duration of the call.
func Login(ctx context.Context, host, username, password string, logger *zap.Logger) (string, error) {
	host = strings.TrimRight(host, "/")
	logger = logger.Named("auth")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
	}

	csrf, err := fetchCSRFToken(ctx, client, host)
	if err != nil {
		return "", err
	}
	logger.Debug("Fetched CSRF token from login page")

	if err := submitLogin(ctx, client, host, csrf, username, password); err != nil {
		return "", err
	}
	logger.Debug("Login accepted")

	token, err := requestToken(ctx, client, host)
	if err != nil {
		return "", err
	}
	logger.Info("Obtained access token")
	return token, nil
}

func fetchCSRFToken(ctx context.Context, client *http.Client, host string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build login page request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch login page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read login page: %w", err)
	}

	match := csrfPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("csrf token not found in login page")
	}
	return string(match[1]), nil
}

func submitLogin(ctx context.Context, client *http.Client, host, csrf, username, password string) error {
	form := url.Values{
		"csrf_token":        {csrf},
		"email_or_username": {username},
		"password":          {password},
		"remember":          {"y"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	return nil
}

func requestToken(ctx context.Context, client *http.Client, host string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/oauth/token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}
	return payload.AccessToken, nil
}
