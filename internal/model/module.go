// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
package model

import "strings"

// =============================================================================
// KNOWLEDGE MODULE TYPE
// =============================================================================

// Module identifies a backend knowledge module. The value is sent verbatim
// as both the "module" and "collection_name" form fields.
type Module string

const (
	ModuleGeneral     Module = "general"
	ModuleContract    Module = "contract"
	ModuleConsultancy Module = "consultancy"
	ModuleTender      Module = "tender"
)

// Modules lists every known module in display order.
var Modules = []Module{ModuleGeneral, ModuleContract, ModuleConsultancy, ModuleTender}

// String returns the wire representation of the module.
func (m Module) String() string {
	return string(m)
}

// DisplayName returns a capitalized name for UI display.
func (m Module) DisplayName() string {
	s := string(m)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Temperature returns the sampling temperature sent for this module,
// already formatted as the backend expects it.
func (m Module) Temperature() string {
	switch m {
	case ModuleGeneral, ModuleConsultancy, ModuleTender:
		return "0.9"
	case ModuleContract:
		return "0.1"
	default:
		return "0.6"
	}
}

// WelcomeMessage returns the greeting shown when a fresh topic is opened
// for this module.
func (m Module) WelcomeMessage() string {
	return "Hi, this is CEDD chatbot " + m.DisplayName() + " module."
}

// IsValid reports whether m names a known module.
func (m Module) IsValid() bool {
	switch m {
	case ModuleGeneral, ModuleContract, ModuleConsultancy, ModuleTender:
		return true
	}
	return false
}

// ParseModule returns the module named by s, falling back to general
// for unknown values.
func ParseModule(s string) Module {
	m := Module(strings.ToLower(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return ModuleGeneral
}
