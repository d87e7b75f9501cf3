// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
)

// SupportContact is the address named in synthetic error responses.
const SupportContact = "support@askcodebase.com"

// ErrNoStream is the acquisition failure reported when a producer returns
// neither a stream nor an error.
var ErrNoStream = errors.New("no response stream")

// ErrorMessage is the assistant text shown when a stream cannot be acquired.
func ErrorMessage(err error) string {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return `Something went wrong. Error: "` + details + `". ` +
		"Please contact " + SupportContact + " if you need help."
}

// ErrorStream returns a stream that yields ErrorMessage(err) once and ends.
// It stands in for a stream that could not be acquired, so the failure is
// rendered as an assistant message through the normal path.
func ErrorStream(err error) io.ReadCloser {
	return io.NopCloser(strings.NewReader(ErrorMessage(err)))
}
