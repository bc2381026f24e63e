package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xenonrt/kernel/internal/xlog"
)

const verifyTag = "verify-archive"

var verifyArchiveCmd = &cobra.Command{
	Use:   "verify-archive <path>",
	Short: "Parse an IMG or RPF archive and report table-of-contents errors, without touching the VFS",
	Args:  cobra.ExactArgs(1),
	RunE:  verifyArchive,
}

func verifyArchive(cmd *cobra.Command, args []string) error {
	path := args[0]

	parser, err := parserFor(path)
	if err != nil {
		return err
	}
	key, err := loadDecryptionKey(cfg.DecryptionKeyPath)
	if err != nil {
		return fmt.Errorf("reading decryption key: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	toc, err := parser(data, key)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	xlog.Infof(verifyTag, "%s: %d entries parsed successfully", path, len(toc.Entries))
	var totalSize int64
	for _, e := range toc.Entries {
		totalSize += e.Size
		if e.Offset < 0 {
			return fmt.Errorf("%s: entry %q has a negative offset", path, e.Name)
		}
	}
	fmt.Printf("%s: %d entries, %d bytes uncompressed total\n", path, len(toc.Entries), totalSize)
	return nil
}
