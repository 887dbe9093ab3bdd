package config

import (
	"os"
	"strings"
)

// ParentRecheckEnabled re-reads the parent invoice's items from the sales
// backend right before the post-split total recompute, instead of trusting the
// items loaded at the start of the saga. Default on.
//
// Set via env:
// - SPLIT_PARENT_RECHECK=false to disable
func ParentRecheckEnabled() bool {
	return !flagDisabled("SPLIT_PARENT_RECHECK")
}

// SplitCompensationEnabled controls whether a mid-saga failure triggers
// reverse-order compensation (restore original items, delete child payment,
// items and invoice). Default on. Turning it off reverts to the legacy
// behavior of leaving partial state behind; keep it for emergencies only.
//
// Set via env:
// - SPLIT_COMPENSATION=false to disable
func SplitCompensationEnabled() bool {
	return !flagDisabled("SPLIT_COMPENSATION")
}

func flagDisabled(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "0" || v == "false" || v == "no" || v == "n"
}
