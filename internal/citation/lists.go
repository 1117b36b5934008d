// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"strings"
)

var (
	bulletLabelPattern = regexp.MustCompile(`(^|\n)([ \t]*[*-][ \t]+)([^:\n]+):`)
	emphasizedPattern  = regexp.MustCompile(`^\*\*.*\*\*$`)
)

// boldBulletLabels turns "- Revenue: up" into "- **Revenue**: up".
func boldBulletLabels(text string) string {
	return replaceSubmatch(bulletLabelPattern, text, func(m []string) (string, bool) {
		prefix, bullet, label := m[1], m[2], strings.TrimSpace(m[3])
		if label == "" || emphasizedPattern.MatchString(label) {
			return "", false
		}
		return prefix + bullet + "**" + label + "**:", true
	})
}
