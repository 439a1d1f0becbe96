// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/katrix/lib/secret"
	"github.com/bureau-foundation/katrix/lib/tui"
)

// toggleLogin opens the login dialog, or logs out when a session is
// active.
func (model Model) toggleLogin() (tea.Model, tea.Cmd) {
	if model.client.LoggedIn() {
		client, ctx := model.client, model.ctx
		return model, runOperation("logout", func() error {
			return client.Logout(ctx)
		})
	}

	dialog := tui.NewDialog("Log in", model.theme)
	dialog.AddField("Homeserver", "https://matrix.org", model.homeserver, false)
	dialog.AddField("Username", "alice", model.username, false)
	dialog.AddField("Password", "", "", true)

	focus := loginFieldHomeserver
	switch {
	case model.homeserver != "" && model.username != "":
		focus = loginFieldPassword
	case model.homeserver != "":
		focus = loginFieldUsername
	}
	model.dialog = dialog
	model.dialogKind = dialogLogin
	return model, dialog.FocusField(focus)
}

func (model Model) openAddRoom() (tea.Model, tea.Cmd) {
	dialog := tui.NewDialog("Add room", model.theme)
	dialog.Message = "Creates a public room."
	dialog.AddField("Name", "room name", "", false)
	model.dialog = dialog
	model.dialogKind = dialogAddRoom
	return model, dialog.FocusField(0)
}

func (model Model) openLeaveRoom() (tea.Model, tea.Cmd) {
	if !model.view.Active() {
		model.client.Feed().Error("Select a room first!")
		return model, nil
	}
	dialog := tui.NewDialog("Leave room", model.theme)
	dialog.Message = fmt.Sprintf("Leave %s?", model.activeRoomName())
	model.dialog = dialog
	model.dialogKind = dialogLeaveRoom
	return model, nil
}

// handleDialogKeys routes keys to the open dialog and acts on its
// outcome.
func (model Model) handleDialogKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	outcome, command := model.dialog.Update(message)
	switch outcome {
	case tui.DialogCancelled:
		model.dialog = nil
		return model, nil
	case tui.DialogSubmitted:
		dialog := model.dialog
		model.dialog = nil
		return model, model.submitDialog(dialog)
	}
	return model, command
}

// submitDialog starts the operation a submitted dialog asks for.
func (model *Model) submitDialog(dialog *tui.Dialog) tea.Cmd {
	client, ctx := model.client, model.ctx
	switch model.dialogKind {
	case dialogLogin:
		homeserver := strings.TrimSpace(dialog.Value(loginFieldHomeserver))
		username := strings.TrimSpace(dialog.Value(loginFieldUsername))
		if homeserver == "" || username == "" {
			client.Feed().Error("Homeserver and username are required")
			return nil
		}
		model.homeserver, model.username = homeserver, username
		password, err := secret.NewFromBytes([]byte(dialog.Value(loginFieldPassword)))
		if err != nil {
			client.Feed().Error("Password is required")
			return nil
		}
		return runOperation("login", func() error {
			defer password.Close()
			return client.Login(ctx, homeserver, username, password)
		})

	case dialogAddRoom:
		name := strings.TrimSpace(dialog.Value(0))
		if name == "" {
			client.Feed().Error("Room name is required")
			return nil
		}
		return runOperation("create room", func() error {
			_, err := client.CreateRoom(ctx, name)
			return err
		})

	case dialogLeaveRoom:
		roomID := model.view.RoomID
		if roomID.IsZero() {
			return nil
		}
		return runOperation("leave room", func() error {
			return client.LeaveRoom(ctx, roomID)
		})
	}
	return nil
}
