// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejects a write,
// typically a registration against an already-registered email.
var ErrDuplicate = errors.New("duplicate key")
