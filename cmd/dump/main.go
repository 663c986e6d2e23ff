// Command dump prints structural details of an ext4 image's
// superblock or a single inode, or extracts a file's content to disk
// with a progress bar, in the style of the project's other image
// inspection tools.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/direktiv/ext4reader/pkg/elog"
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
	var extract string
	var numbers string

	cmd := &cobra.Command{
		Use:           "dump IMAGE [PATH]",
		Short:         "dump structural details of an ext4 image, or extract a file's content",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ext4cli.SetNumbersMode(numbers); err != nil {
				return err
			}

			image := args[0]
			path := ""
			if len(args) > 1 {
				path = args[1]
			}

			if extract != "" {
				if path == "" {
					return errors.New("--extract requires PATH")
				}
				return extractFile(image, path, extract)
			}

			if path == "" {
				return dumpSuperblock(image)
			}
			return dumpInode(image, path)
		},
	}

	cmd.Flags().StringVarP(&extract, "extract", "o", "", "extract PATH's content to this local file instead of dumping metadata")
	cmd.Flags().StringVar(&numbers, "numbers", "short", "size format: short, dec, or hex")

	return cmd
}

func dumpSuperblock(image string) error {
	s, err := ext4.Open(image)
	if err != nil {
		return err
	}
	defer s.Close()

	sb := s.Superblock()
	fmt.Printf("Volume UUID:    %s\n", sb.UUIDString())
	fmt.Printf("Block size:     %d\n", sb.BlockSize())
	fmt.Printf("Blocks count:   %d\n", sb.BlocksCount())
	fmt.Printf("Inodes count:   %d\n", sb.InodesCount)
	fmt.Printf("Inode size:     %d\n", sb.InodeSize)
	fmt.Printf("Block groups:   %d\n", sb.TotalGroups())
	fmt.Printf("Extents:        %v\n", sb.HasExtents())
	fmt.Printf("64-bit:         %v\n", sb.Has64Bit())
	fmt.Printf("Flex_bg:        %v\n", sb.HasFlexBG())
	fmt.Printf("Metadata csum:  %v\n", sb.HasMetadataCsum())
	fmt.Printf("GDT csum:       %v\n", sb.HasGDTCsum())
	fmt.Printf("Inline data:    %v\n", sb.HasInlineData())

	return nil
}

func dumpInode(image, path string) error {
	s, err := ext4.Open(image)
	if err != nil {
		return err
	}
	defer s.Close()

	ino, err := s.File(path)
	if err != nil {
		return errors.Wrap(err, path)
	}

	fmt.Printf("File:     %s\n", path)
	fmt.Printf("Type:     %c\n", ino.TypeChar())
	fmt.Printf("Size:     %s\n", ext4cli.PrintableSize(int64(ino.Size())))
	fmt.Printf("Links:    %d\n", ino.LinksCount)
	fmt.Printf("Access:   %03o/%s\n", ino.Permissions(), ino.PermissionsString())
	fmt.Printf("Uid:      %d\n", ino.UIDLo)
	fmt.Printf("Gid:      %d\n", ino.GIDLo)
	fmt.Printf("Access:   %s\n", ino.ATimeValue())
	fmt.Printf("Modify:   %s\n", ino.MTimeValue())
	fmt.Printf("Change:   %s\n", ino.CTimeValue())
	if crtime, ok := ino.CrTimeValue(); ok {
		fmt.Printf("Create:   %s\n", crtime)
	}

	return nil
}

func extractFile(image, path, dest string) error {
	s, err := ext4.Open(image)
	if err != nil {
		return err
	}
	defer s.Close()

	ino, err := s.File(path)
	if err != nil {
		return errors.Wrap(err, path)
	}
	if !ino.IsRegularFile() {
		return errors.Errorf("%s: not a regular file", path)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	log := &elog.CLI{}
	size := int64(ino.Size())
	progress := log.NewProgress(fmt.Sprintf("Extracting %s", path), "KiB", size)

	const chunk = 1 << 20
	var off uint64
	success := false
	defer func() { progress.Finish(success) }()

	for off < uint64(size) {
		n := uint64(chunk)
		if off+n > uint64(size) {
			n = uint64(size) - off
		}
		buf, err := s.ReadFile(ino, off, n)
		if err != nil {
			return err
		}
		if _, err := out.Write(buf); err != nil {
			return err
		}
		progress.Increment(int64(len(buf)))
		off += n
	}
	success = true

	return nil
}
