// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"

	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/messaging"
)

// PasswordLogin returns a ConnectFunc that logs in with a
// messaging.Client built from base, with HomeserverURL replaced by the
// homeserver passed to Login.
func PasswordLogin(base messaging.ClientConfig) ConnectFunc {
	return func(ctx context.Context, homeserver, username string, password *secret.Buffer) (messaging.Session, error) {
		config := base
		config.HomeserverURL = homeserver
		client, err := messaging.NewClient(config)
		if err != nil {
			return nil, err
		}
		session, err := client.Login(ctx, username, password)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}
