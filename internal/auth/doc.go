// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackCraft Contributors

// Package auth implements the authentication and credential-lifecycle core
// of TrackCraft.
//
// # Domain Types
//
// Domain types (Principal, WebSession, PendingCredentialChange) should be
// created through their constructors:
//   - NewAdmin / NewRegistration - create a validated Principal
//   - NewWebSession - creates a WebSession bound to a Principal
//   - NewPendingCredentialChange - creates a pending password change
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated values from these
// constructors.
//
// # Services
//
// Service types coordinate the domain operations:
//   - AuthService - login, session validation, logout
//   - RegisterService - registration and default-admin bootstrap
//   - ResetService - two-phase password reset by email
//   - CredentialMigrator - plaintext-to-bcrypt migration sweep
package auth
