// Copyright 2012 HHMI.  All rights reserved. See LICENSE-equivalent
// header in main.go.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/verify"
)

func newVerifyStackCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "verifystack <file>",
		Short: "Load a container, report consistency discrepancies, and optionally repair them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyStack(args[0], repair)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "fix superpixels with no segment and save the result back")
	return cmd
}

func runVerifyStack(path string, repair bool) error {
	logger := newLogger()
	defer logger.Sync()

	logger.Infow("loading container", "path", path, "repair", repair)
	s, err := stack.Load(path)
	if err != nil {
		return fmt.Errorf("verifystack: %w", err)
	}

	res, err := verify.Run(s, repair)
	if err != nil {
		return fmt.Errorf("verifystack: %w", err)
	}

	for _, msg := range res.Errors {
		logger.Warnw("discrepancy", "detail", msg)
	}
	for _, msg := range res.Repairs {
		logger.Infow("repaired", "detail", msg)
	}

	if repair {
		logger.Infow("saving repaired container", "path", path)
		if err := s.Save(path, false); err != nil {
			return fmt.Errorf("verifystack: %w", err)
		}
	}

	if !res.OK() && !repair {
		return fmt.Errorf("verifystack: found %d discrepancies", len(res.Errors))
	}
	return nil
}
