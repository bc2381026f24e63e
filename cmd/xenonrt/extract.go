package main

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/xenonrt/kernel/internal/xlog"
)

const extractTag = "extract"

var extractOut string

var extractCmd = &cobra.Command{
	Use:   "extract <archive-path> <entry-name>",
	Short: "Extract a single named entry from an IMG or RPF archive to a host file",
	Args:  cobra.ExactArgs(2),
	RunE:  extractEntry,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "destination path (defaults to the entry's base name)")
}

func extractEntry(cmd *cobra.Command, args []string) error {
	archivePath, entryName := args[0], args[1]

	parser, err := parserFor(archivePath)
	if err != nil {
		return err
	}
	key, err := loadDecryptionKey(cfg.DecryptionKeyPath)
	if err != nil {
		return fmt.Errorf("reading decryption key: %w", err)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	toc, err := parser(data, key)
	if err != nil {
		return fmt.Errorf("%s: %w", archivePath, err)
	}

	out := extractOut
	if out == "" {
		out = path.Base(entryName)
	}

	body, err := toc.Extract(entryName)
	if err != nil {
		return fmt.Errorf("%s: %w", entryName, err)
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return err
	}

	xlog.Infof(extractTag, "wrote %d bytes to %s", len(body), out)
	return nil
}
