// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"strings"
	"time"
)

const (
	CredentialPlain        = "PLAIN"
	CredentialAccessToken  = "ACCESSTOKEN"
	CredentialRefreshToken = "REFRESHTOKEN"
)

// SinkCredential authenticates outbound notifications against the caller's sink.
type SinkCredential struct {
	CredentialType        string    `json:"credentialType"`
	AccessToken           string    `json:"accessToken,omitempty"`
	AccessTokenExpiresUTC time.Time `json:"accessTokenExpiresUtc,omitempty"`
	AccessTokenType       string    `json:"accessTokenType,omitempty"`
}

// Usable reports whether the credential can authenticate a delivery at now.
// Only bearer access tokens are supported.
func (c *SinkCredential) Usable(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.CredentialType != CredentialAccessToken {
		return false
	}
	if c.AccessToken == "" || !strings.EqualFold(c.AccessTokenType, "bearer") {
		return false
	}
	return c.AccessTokenExpiresUTC.After(now)
}
