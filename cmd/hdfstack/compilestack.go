// Copyright 2012 HHMI.  All rights reserved. See LICENSE-equivalent
// header in main.go.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/janelia-flyem/raveler-utils/construct"
)

func newCompileStackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compilestack <stack-path> [out-path]",
		Short: "Build a container from superpixel_bounds.txt, superpixel_to_segment_map.txt, and segment_to_body_map.txt",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stackPath := args[0]
			outPath := stackPath
			if len(args) == 2 {
				outPath = args[1]
			}
			return runCompileStack(stackPath, outPath)
		},
	}
}

func runCompileStack(stackPath, outPath string) error {
	outfile := filepath.Join(outPath, "stack.h5")
	if _, err := os.Stat(outfile); err == nil {
		return fmt.Errorf("compilestack: %s already exists, delete it manually before retrying", outfile)
	}

	logger := newLogger()
	defer logger.Sync()

	in := construct.Inputs{
		BoundsPath:   filepath.Join(stackPath, "superpixel_bounds.txt"),
		SegmentsPath: filepath.Join(stackPath, "superpixel_to_segment_map.txt"),
		BodiesPath:   filepath.Join(stackPath, "segment_to_body_map.txt"),
	}

	logger.Infow("loading text tables", "root", stackPath)
	s, err := construct.Build(in, construct.Options{LogDir: outPath, Logger: logger})
	if err != nil {
		return fmt.Errorf("compilestack: %w", err)
	}

	logger.Infow("writing container", "path", outfile)
	if err := s.Save(outfile, false); err != nil {
		return fmt.Errorf("compilestack: %w", err)
	}

	return nil
}
