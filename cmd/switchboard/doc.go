// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// switchboard is the operator CLI for the broker daemon:
//
//	switchboard query <service>        print a service's state
//	switchboard request <service>      connect and pipe stdio
//	switchboard observe                stream lifecycle events
//	switchboard check-policy <dir>...  validate policy directories
package main
