// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// specParser accepts standard five-field specs plus descriptors like
// @hourly.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a parseable cron expression.
func ValidateSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("cron spec is empty")
	}
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}
