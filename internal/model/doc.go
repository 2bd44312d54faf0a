// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
//
// This package defines the core domain types used throughout the
// application for representing chat topics, messages, knowledge modules,
// and retrieval partitions.
//
// # Key Types
//
//   - Topic: one conversation; its ID doubles as the backend session ID
//   - Message: single message with role, content, reasoning, references,
//     attachments, and feedback
//   - Module: backend knowledge module (general, contract, consultancy,
//     tender) with per-module temperature and greeting
//   - Partition: selectable retrieval partition of a module
//   - Reference: retrieval citation attached to an assistant message
//
// # Usage
//
// Create a fresh topic and append a message:
//
//	topic := model.NewTopic("alice@example.com", model.ModuleGeneral)
//	topic.Append(model.NewUserMessage("What is the notice period?"))
//	topic.DeriveTitle("What is the notice period?")
package model
