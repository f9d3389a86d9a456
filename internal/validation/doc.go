// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata, reports fields by their json names and adds a "notblank" tag:
//
//	type Join struct {
//	    Room string `json:"room" validate:"required,notblank,max=64"`
//	}
//
//	if err := validation.ValidateStruct(&j); err != nil {
//	    apiErr := err.ToAPIError()
//	    // apiErr.Code == "VALIDATION_ERROR"
//	}
package validation
