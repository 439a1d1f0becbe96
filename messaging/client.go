// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/bureau-foundation/katrix/lib/clock"
	"github.com/bureau-foundation/katrix/lib/ref"
	"github.com/bureau-foundation/katrix/lib/secret"
)

// defaultDeviceName is shown in the user's session list on other clients.
const defaultDeviceName = "katrix"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver (e.g., "https://matrix.org").
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, a client with a
	// timeout longer than the /sync long-poll is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// SDKLogger receives mautrix's own request logs. If nil, they are
	// discarded.
	SDKLogger *zerolog.Logger
	// DeviceName is the initial display name of devices created by
	// Login. Defaults to "katrix".
	DeviceName string
	// Clock drives sync retry backoff. If nil, clock.Real() is used.
	Clock clock.Clock
	// SyncTimeout is the /sync long-poll hold time. Defaults to 30s.
	SyncTimeout time.Duration
}

// Client is an unauthenticated Matrix client.
// It holds the homeserver URL and HTTP transport, shared across Sessions.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	sdkLogger   zerolog.Logger
	deviceName  string
	clock       clock.Clock
	syncTimeout time.Duration
}

// NewClient creates a new unauthenticated Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must use http or https", config.HomeserverURL)
	}

	syncTimeout := config.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = 30 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: syncTimeout + 30*time.Second}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deviceName := config.DeviceName
	if deviceName == "" {
		deviceName = defaultDeviceName
	}

	sdkLogger := zerolog.Nop()
	if config.SDKLogger != nil {
		sdkLogger = *config.SDKLogger
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Client{
		baseURL:     strings.TrimRight(config.HomeserverURL, "/"),
		httpClient:  httpClient,
		logger:      logger,
		sdkLogger:   sdkLogger,
		deviceName:  deviceName,
		clock:       clk,
		syncTimeout: syncTimeout,
	}, nil
}

// HomeserverURL returns the homeserver base URL without a trailing slash.
func (c *Client) HomeserverURL() string {
	return c.baseURL
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Login authenticates with username and password, returning a
// DirectSession. The username may be a bare localpart or a full user
// ID. The password Buffer is read but not closed; the caller retains
// ownership.
func (c *Client) Login(ctx context.Context, username string, password *secret.Buffer) (*DirectSession, error) {
	if username == "" {
		return nil, fmt.Errorf("messaging: username is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	sdk, err := c.newSDKClient("", "")
	if err != nil {
		return nil, err
	}

	// Password is converted to string at the JSON serialization boundary.
	response, err := sdk.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: username,
		},
		Password:                 password.String(),
		InitialDeviceDisplayName: c.deviceName,
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", translateError(err))
	}

	userID, err := ref.ParseUserID(response.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("messaging: homeserver returned invalid user ID: %w", err)
	}

	c.logger.Info("logged in to matrix",
		"user_id", userID,
		"device_id", response.DeviceID,
	)
	return newDirectSession(c, sdk, userID), nil
}

// SessionFromToken creates a DirectSession from an existing access token.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) (*DirectSession, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("messaging: user ID is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("messaging: access token is required")
	}
	sdk, err := c.newSDKClient(id.UserID(userID.String()), accessToken)
	if err != nil {
		return nil, err
	}
	return newDirectSession(c, sdk, userID), nil
}

func (c *Client) newSDKClient(userID id.UserID, accessToken string) (*mautrix.Client, error) {
	sdk, err := mautrix.NewClient(c.baseURL, userID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: creating matrix client: %w", err)
	}
	sdk.Client = c.httpClient
	sdk.Log = c.sdkLogger
	return sdk, nil
}
