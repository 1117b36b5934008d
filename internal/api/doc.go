// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the agent chat backend.
//
// It covers agent lookup, lead registration (which issues the bearer
// tokens), conversation creation, message send and history fetch. Calls
// that carry a bearer token re-register the stored lead once on a 401 and
// retry; a second 401 surfaces as ErrSessionExpired.
//
// # Usage
//
//	client := api.NewClient("https://api.example.com", logger).
//	    WithRateLimit(5, 5)
//	sess, err := client.RegisterLead(ctx, lead)
//	convID, err := client.CreateConversation(ctx, agentID)
//	res, err := client.SendUserMessage(ctx, convID, "Hello")
//	msgs, err := client.FetchMessages(ctx, convID, 1, 100)
package api
