package ext4cli

import (
	"errors"
	"os"

	"github.com/direktiv/ext4reader/pkg/ext4"
)

// ExitCode maps a returned error to the process exit status shared by
// cat, ls, and dump: 0 on success, 1 on user errors (permission
// denied, not found, not a directory, bad argument, or any error the
// CLI layer raised itself), 2 on unexpected decode failure from the
// library.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, os.ErrPermission) {
		return 1
	}

	var e *ext4.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case ext4.KindIO, ext4.KindRange, ext4.KindCorruption, ext4.KindUnsupported, ext4.KindDecoding:
			return 2
		}
	}
	return 1
}
