package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

var (
	magicZip  = []byte("PK\x03\x04")
	magicGzip = []byte{0x1f, 0x8b}
	magicXz   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicTar  = []byte("ustar")
)

// ErrStopWalk stops WalkTar early without an error.
var ErrStopWalk = errors.New("stop walk")

// IsZip reports whether data starts with a zip local file header.
func IsZip(data []byte) bool { return bytes.HasPrefix(data, magicZip) }

// IsGzip reports whether data starts with the gzip magic.
func IsGzip(data []byte) bool { return bytes.HasPrefix(data, magicGzip) }

// IsXz reports whether data starts with the xz magic.
func IsXz(data []byte) bool { return bytes.HasPrefix(data, magicXz) }

// OpenZip opens an in-memory zip archive.
func OpenZip(data []byte) (*zip.Reader, error) {
	if !IsZip(data) {
		return nil, fmt.Errorf("not a zip archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return zr, nil
}

// ReadZipFile reads a zip member fully.
func ReadZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// FindZipFile returns the member with exactly this name.
func FindZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Decompress returns a reader over data with any gzip or xz framing removed.
// Data in neither format is returned as is.
func Decompress(data []byte) (io.Reader, error) {
	switch {
	case IsGzip(data):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case IsXz(data):
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return xr, nil
	default:
		return bytes.NewReader(data), nil
	}
}

// CleanName normalizes an archive member name: forward slashes, no leading
// "./" or "/".
func CleanName(name string) string {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}

// WalkTar calls fn for every regular file of a tar archive that may be gzip
// or xz compressed. Returning ErrStopWalk from fn ends the walk with a nil
// error.
func WalkTar(data []byte, fn func(name string, r io.Reader) error) error {
	raw, err := Decompress(data)
	if err != nil {
		return err
	}
	br := bufio.NewReaderSize(raw, 1024)
	head, err := br.Peek(262)
	if err != nil || !bytes.Equal(head[257:262], magicTar) {
		return fmt.Errorf("not a tar archive")
	}

	tr := tar.NewReader(br)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(CleanName(hdr.Name), tr); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
}
