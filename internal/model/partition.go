// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
package model

import "sort"

// =============================================================================
// RAG PARTITION TYPE
// =============================================================================

// Partition is one selectable retrieval partition of a knowledge module.
// DocNames are the constituent documents; the chat request carries these,
// not the partition name.
type Partition struct {
	Name     string   `json:"name"`
	DocNames []string `json:"doc_names"`
	Enabled  bool     `json:"enabled"`
}

// Module-specific display ranks. The backend names partitions after their
// source document, so the keys are document filenames. Lower rank sorts
// first; unranked partitions keep their fetch order after the ranked ones.
var partitionRanks = map[Module]map[string]int{
	ModuleContract: {
		"02_NEC4 ECC.pdf":                       1,
		"01_Pratice Notes for NEC4 ECC.pdf":     2,
		"09_CEDD NEC Playbook.pdf":              3,
		"03_ECC4_Manage_UG4_Jan 2023.pdf":       4,
		"06_DEVB memo - Full Implementation of NEC form of Contract.pdf": 5,
		"04_TC2_2023.pdf": 6,
		"05_TC5_2021.pdf": 7,
	},
	ModuleGeneral: {
		"PAH_Ch1.pdf": 1, "PAH_Ch2.pdf": 2, "PAH_Ch3.pdf": 3,
		"PAH_Ch4.pdf": 4, "PAH_Ch5.pdf": 5, "PAH_Ch6.pdf": 6,
		"PAH_Ch7.pdf": 7, "PAH_Ch8.pdf": 8, "PAH_Ch9.pdf": 9,
	},
}

// SortPartitions orders partitions by the module's rank map and applies the
// module's default selection: contract partitions start enabled, every
// other module starts with all partitions off until the user toggles them.
func SortPartitions(module Module, parts []Partition) []Partition {
	ranks := partitionRanks[module]
	sorted := make([]Partition, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, iok := ranks[sorted[i].Name]
		rj, jok := ranks[sorted[j].Name]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})

	enabled := module == ModuleContract
	for i := range sorted {
		sorted[i].Enabled = enabled
	}
	return sorted
}

// EnabledDocNames flattens the document names of the enabled partitions,
// in order.
func EnabledDocNames(parts []Partition) []string {
	var names []string
	for _, p := range parts {
		if p.Enabled {
			names = append(names, p.DocNames...)
		}
	}
	return names
}
