package evidence

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Archive packs srcDir into a gzip-compressed tarball at dest. Entries are
// rooted at the base name of srcDir. A "<dest>.sha256" file is written next to
// the archive in sha256sum format.
func Archive(srcDir, dest string) (string, int64, error) {
	if err := EnsureParent(dest); err != nil {
		return "", 0, err
	}
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, err
	}

	if err := writeTarGz(f, srcDir); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", 0, err
	}

	sha, size, err := SHA256File(dest)
	if err != nil {
		return "", 0, err
	}
	line := fmt.Sprintf("%s  %s\n", sha, filepath.Base(dest))
	if err := WriteFileAtomic(dest+".sha256", []byte(line), 0o600); err != nil {
		return "", 0, err
	}
	return sha, size, nil
}

func writeTarGz(w io.Writer, srcDir string) error {
	gzW := gzip.NewWriter(w)
	tarW := tar.NewWriter(gzW)

	root := filepath.Clean(srcDir)
	prefix := filepath.Base(root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(prefix, rel))

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "", ""
		if err := tarW.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tarW, src)
		return err
	})
	if err != nil {
		_ = tarW.Close()
		_ = gzW.Close()
		return err
	}
	if err := tarW.Close(); err != nil {
		return err
	}
	return gzW.Close()
}
