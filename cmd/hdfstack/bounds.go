// Copyright 2012 HHMI.  All rights reserved. See LICENSE-equivalent
// header in main.go.

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrTileScanNotImplemented is returned by the bounds command: the
// tile-directory scanner that would produce superpixel_bounds.txt is
// an external collaborator outside this module's core scope.
var ErrTileScanNotImplemented = errors.New("not implemented: tile scanning is an external collaborator")

func newBoundsCmd() *cobra.Command {
	var tileSize int

	cmd := &cobra.Command{
		Use:   "bounds <stack-path>",
		Short: "Scan a tile directory to produce superpixel_bounds.txt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ErrTileScanNotImplemented
		},
	}
	cmd.Flags().IntVar(&tileSize, "tilesize", 1024, "tile edge length in pixels")
	return cmd
}
