// Command mkinitrd builds an initrd boot module from a host directory
// tree, in the wire format internal/initrd.Parse decodes (spec.md §6).
// It is a host-side tool — out of scope for the kernel itself — so it
// freely uses the standard library's os/flag and, per the DOMAIN STACK,
// golang.org/x/sys/unix for host permission bits and
// golang.org/x/sync/errgroup to read file bodies concurrently once the
// directory walk has collected the entries. Grounded on
// biscuit/src/mkfs/mkfs.go's addfiles/copydata host-tool shape, adapted
// from Biscuit's on-disk ufs format to the simpler flat initrd table.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"minikern/internal/initrd"
)

func main() {
	srcDir := flag.String("src", "", "host directory tree to pack (required)")
	out := flag.String("out", "initrd.img", "output initrd image path")
	flag.Parse()

	if *srcDir == "" {
		fmt.Fprintln(os.Stderr, "mkinitrd: -src is required")
		os.Exit(1)
	}

	paths, err := collectFiles(*srcDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}

	files, err := readFiles(*srcDir, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}

	img, err := initrd.Build(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, img, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkinitrd: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mkinitrd: wrote %d files to %s (%d bytes)\n", len(files), *out, len(img))
}

// collectFiles walks srcDir, skipping directories, and returns every
// regular file's path relative to srcDir.
func collectFiles(srcDir string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return relErr
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	return rels, err
}

// readFiles reads every file's body and host permission bits
// concurrently: the fixed-size file table this package produces is
// order-independent to build, so each file's read/stat pair runs as an
// independent errgroup task and results are assembled back in the
// order collectFiles returned, keeping the image deterministic.
func readFiles(srcDir string, rels []string) ([]initrd.BuildFile, error) {
	out := make([]initrd.BuildFile, len(rels))

	var g errgroup.Group
	for i, rel := range rels {
		i, rel := i, rel
		g.Go(func() error {
			full := filepath.Join(srcDir, rel)
			body, err := os.ReadFile(full)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			perm, err := hostPerm(full)
			if err != nil {
				return fmt.Errorf("stat %s: %w", rel, err)
			}
			out[i] = initrd.BuildFile{
				Name: strings.TrimPrefix(rel, "/"),
				Body: body,
				Type: initrd.TypeFile,
				Perm: perm,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// hostPerm translates the host owner's rwx bits into the initrd's
// PermRead/PermWrite/PermExec set.
func hostPerm(path string) (uint32, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	var perm uint32
	if st.Mode&unix.S_IRUSR != 0 {
		perm |= initrd.PermRead
	}
	if st.Mode&unix.S_IWUSR != 0 {
		perm |= initrd.PermWrite
	}
	if st.Mode&unix.S_IXUSR != 0 {
		perm |= initrd.PermExec
	}
	return perm, nil
}
