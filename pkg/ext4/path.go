package ext4

import "strings"

// InodeLocator resolves an inode number to its decoded Inode. The
// path resolver is agnostic to how that lookup happens (session BGD
// cache, test fake) beyond this single method.
type InodeLocator func(number uint32) (*Inode, error)

// ResolvePath walks path, an absolute POSIX path, from the root
// directory (inode 2) to the inode it names. Path components are
// matched by exact byte comparison against directory entry names; no
// normalisation, symlink following, or "."/".." special-casing beyond
// what is literally present as directory entries is performed.
func ResolvePath(sb *Superblock, path string, locate InodeLocator, read BlockReader) (*Inode, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, newErr(KindArgument, "path %q is not absolute", path)
	}

	root, err := locate(RootDirInode)
	if err != nil {
		return nil, err
	}

	remainder := strings.TrimPrefix(path, "/")
	if remainder == "" {
		return root, nil
	}

	return resolveWithin(sb, root, remainder, locate, read)
}

func resolveWithin(sb *Superblock, dir *Inode, remainder string, locate InodeLocator, read BlockReader) (*Inode, error) {
	if !dir.IsDirectory() {
		return nil, newErr(KindNotADirectory, "inode %d is not a directory", dir.number)
	}

	head, tail := remainder, ""
	if i := strings.IndexByte(remainder, '/'); i >= 0 {
		head, tail = remainder[:i], remainder[i+1:]
	}

	entries, err := ReadDir(sb, dir, read)
	if err != nil {
		return nil, err
	}

	var found *DirEntry
	for i := range entries {
		if entries[i].Name == head {
			found = &entries[i]
			break
		}
	}
	if found == nil {
		return nil, newErr(KindNotFound, "path component %q not found", head)
	}

	child, err := locate(found.Inode)
	if err != nil {
		return nil, err
	}

	if tail == "" {
		return child, nil
	}
	return resolveWithin(sb, child, tail, locate, read)
}
