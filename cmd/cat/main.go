// Command cat writes the content of one or more files inside an ext4
// image to standard output, mirroring the read-only argument shape of
// the system utility it is named after.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/direktiv/ext4reader/pkg/ext4"
	"github.com/direktiv/ext4reader/pkg/ext4cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	err := cmd.Execute()
	return ext4cli.ExitCode(err)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cat IMAGE FILE...",
		Short:         "print the content of one or more files from an ext4 image",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return catFiles(args[0], args[1:])
		},
	}
	return cmd
}

const readChunk = 1 << 20 // 1MiB

func catFiles(image string, paths []string) error {
	s, err := ext4.Open(image)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range paths {
		ino, err := s.File(path)
		if err != nil {
			return errors.Wrap(err, path)
		}
		if !ino.IsRegularFile() {
			return errors.Errorf("%s: not a regular file", path)
		}

		size := ino.Size()
		for off := uint64(0); off < size; off += readChunk {
			n := uint64(readChunk)
			if off+n > size {
				n = size - off
			}
			buf, err := s.ReadFile(ino, off, n)
			if err != nil {
				return errors.Wrap(err, path)
			}
			if _, err := os.Stdout.Write(buf); err != nil {
				return errors.Wrap(err, "writing to stdout")
			}
		}
	}
	return nil
}
