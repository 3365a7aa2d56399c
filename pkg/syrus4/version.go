// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus4

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Instance is one application installed on a Syrus 4 device
type Instance struct {
	AppName string `json:"app_name"`
	Version string `json:"version"`
}

// DecodeVersionInfo returns the firmware label of the Ecoplant application,
// e.g. "Ecoplant 1.2.3 4G".
func DecodeVersionInfo(instances []Instance) string {
	if len(instances) == 0 {
		return VersionMissing
	}
	for _, inst := range instances {
		if strings.Contains(strings.ToLower(inst.AppName), ProductIdentifier) {
			name := cases.Title(language.Und).String(ProductIdentifier)
			return strings.Join([]string{name, inst.Version, VersionSuffix}, " ")
		}
	}
	return VersionNotFound
}
