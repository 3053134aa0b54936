// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuGH/echodl/internal/catalog"
	xglog "github.com/ManuGH/echodl/internal/log"
)

// ParseFlag parses "true" or "false", ignoring case and surrounding space.
func ParseFlag(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q: %w", raw, strconv.ErrSyntax)
}

// SetDownloaded sets the downloaded flag of every recording matching c to
// the parsed value of raw and saves the catalog. An unparsable value
// changes nothing.
func SetDownloaded(ctx context.Context, store *catalog.Store, c catalog.Criteria, raw string) (int, error) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	v, err := ParseFlag(raw)
	if err != nil {
		logger.Warn().Str("value", raw).Str(xglog.FieldEvent, "mark.invalid").
			Msg("unable to parse value, please enter true or false")
		return 0, err
	}

	n := store.SetDownloaded(c, v)
	if err := store.Save(); err != nil {
		return n, err
	}
	logger.Info().Int(xglog.FieldCount, n).Bool("downloaded", v).Str(xglog.FieldEvent, "mark.done").
		Msgf("marked %d lecture(s) as downloaded=%t", n, v)
	return n, nil
}
