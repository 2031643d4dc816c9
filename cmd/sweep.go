/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-interviewer/internal/artifacts"
	"github.com/loqalabs/loqa-interviewer/internal/config"
)

var sweepMaxAge time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete audio artifacts older than --max-age",
	Long: `Delete stale audio artifacts from the storage area.

Examples:
  loqa-interviewer sweep
  loqa-interviewer sweep --max-age 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithoutCredentials()
		if err != nil {
			return err
		}

		maxAge := cfg.Artifacts.MaxAge
		if cmd.Flags().Changed("max-age") {
			maxAge = sweepMaxAge
		}
		if maxAge <= 0 {
			return fmt.Errorf("--max-age must be positive")
		}

		store, err := artifacts.NewStore(cfg.Artifacts.Dir)
		if err != nil {
			return err
		}

		result, err := store.Sweep(maxAge, time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d artifacts (%s freed) from %s\n",
			result.Removed, result.Scanned, humanize.IBytes(uint64(result.FreedBytes)), store.Dir())
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 24*time.Hour, "remove artifacts last modified longer ago than this")
}
