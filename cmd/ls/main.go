// Command ls lists directory contents inside an ext4 image, in the
// style of the system utility it is named after.
package main

import (
	"fmt"
	"os"
	"path"
	"strings"

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
	var long, all, almostAll, recursive bool
	var numbers string

	cmd := &cobra.Command{
		Use:           "ls IMAGE [PATH]",
		Short:         "list a directory's contents from an ext4 image",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ext4cli.SetNumbersMode(numbers); err != nil {
				return err
			}

			fpath := "/"
			if len(args) > 1 {
				fpath = args[1]
			}

			return listPath(args[0], fpath, lsOptions{
				long:      long,
				all:       all,
				almostAll: almostAll,
				recursive: recursive,
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "use a detailed listing format")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "do not ignore entries starting with .")
	cmd.Flags().BoolVarP(&almostAll, "almost-all", "A", false, "like -a, but exclude . and ..")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list subdirectories recursively")
	cmd.Flags().StringVar(&numbers, "numbers", "short", "size format: short, dec, or hex")

	return cmd
}

type lsOptions struct {
	long      bool
	all       bool
	almostAll bool
	recursive bool
}

func listPath(image, fpath string, opt lsOptions) error {
	s, err := ext4.Open(image)
	if err != nil {
		return err
	}
	defer s.Close()

	ino, err := s.File(fpath)
	if err != nil {
		return errors.Wrap(err, fpath)
	}

	return listDir(s, ino, fpath, opt)
}

func listDir(s *ext4.Session, ino *ext4.Inode, fpath string, opt lsOptions) error {
	if !ino.IsDirectory() {
		fmt.Println(fpath)
		return nil
	}

	entries, err := s.ReadDir(ino)
	if err != nil {
		return err
	}

	if opt.recursive {
		fmt.Printf("%s:\n", fpath)
	}

	var table [][]string
	var subdirs []string

	for _, e := range entries {
		if !(opt.all || opt.almostAll) && strings.HasPrefix(e.Name, ".") {
			continue
		}
		if opt.almostAll && (e.Name == "." || e.Name == "..") {
			continue
		}

		child, err := s.Inode(e.Inode)
		if err != nil {
			return err
		}

		if opt.long {
			row := []string{
				string(child.TypeChar()) + child.PermissionsString(),
				fmt.Sprintf("%d", child.LinksCount),
				fmt.Sprintf("%d", child.UIDLo),
				fmt.Sprintf("%d", child.GIDLo),
				ext4cli.PrintableSize(int64(child.Size())).String(),
				child.MTimeValue().Format("Jan _2 15:04"),
				e.Name,
			}
			table = append(table, row)
		} else {
			fmt.Println(e.Name)
		}

		if opt.recursive && child.IsDirectory() && e.Name != "." && e.Name != ".." {
			subdirs = append(subdirs, e.Name)
		}
	}

	if opt.long && len(table) > 0 {
		ext4cli.PlainTable(table)
	}

	for _, name := range subdirs {
		childPath := path.Join(fpath, name)
		child, err := s.File(childPath)
		if err != nil {
			return errors.Wrap(err, childPath)
		}
		fmt.Println()
		if err := listDir(s, child, childPath, opt); err != nil {
			return err
		}
	}

	return nil
}
