package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/fileset"
)

// Writer adds entries to an archive
type Writer interface {
	// AddDir adds a directory node
	AddDir(name string, info os.FileInfo) error

	// AddFile adds a file copied from r
	AddFile(name string, info os.FileInfo, r io.Reader) error

	// AddBytes adds a generated file
	AddBytes(name string, data []byte) error

	// Close flushes the archive
	Close() error
}

// zipWriter writes deflated zip archives
type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer) *zipWriter {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return &zipWriter{zw: zw}
}

func (z *zipWriter) AddDir(name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = strings.TrimSuffix(cleanName(name), "/") + "/"
	header.Method = zip.Store

	_, err = z.zw.CreateHeader(header)
	return err
}

func (z *zipWriter) AddFile(name string, info os.FileInfo, r io.Reader) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = cleanName(name)
	header.Method = zip.Deflate

	writer, err := z.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, r)
	return err
}

func (z *zipWriter) AddBytes(name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     cleanName(name),
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	header.SetMode(0644)

	writer, err := z.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = writer.Write(data)
	return err
}

func (z *zipWriter) Close() error {
	return z.zw.Close()
}

// tarGzWriter writes gzip compressed tar archives
type tarGzWriter struct {
	gw *gzip.Writer
	tw *tar.Writer
}

func newTarGzWriter(w io.Writer) *tarGzWriter {
	gw := gzip.NewWriter(w)
	return &tarGzWriter{
		gw: gw,
		tw: tar.NewWriter(gw),
	}
}

func (t *tarGzWriter) AddDir(name string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = strings.TrimSuffix(cleanName(name), "/") + "/"
	return t.tw.WriteHeader(header)
}

func (t *tarGzWriter) AddFile(name string, info os.FileInfo, r io.Reader) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = cleanName(name)

	if err := t.tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(t.tw, r)
	return err
}

func (t *tarGzWriter) AddBytes(name string, data []byte) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     cleanName(name),
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  time.Now(),
	}
	if err := t.tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := t.tw.Write(data)
	return err
}

func (t *tarGzWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		t.gw.Close()
		return err
	}
	return t.gw.Close()
}

// Rule places the entries of a file group inside an archive
type Rule struct {
	// Entries to place
	Entries []fileset.Entry

	// Prefix is the archive directory the relative paths are joined to
	Prefix string

	// IncludeFolders adds directory nodes for folder entries
	IncludeFolders bool

	// Skip excludes entries from the archive
	Skip func(fileset.Entry) bool
}

// Builder copies filesystem entries into a Writer following placement rules
type Builder struct {
	fs afero.Fs
	w  Writer
}

// NewBuilder creates a builder reading from fs
func NewBuilder(fs afero.Fs, w Writer) *Builder {
	return &Builder{fs: fs, w: w}
}

// Place adds every entry of the rule
func (b *Builder) Place(rule Rule) error {
	for _, e := range rule.Entries {
		if rule.Skip != nil && rule.Skip(e) {
			continue
		}

		dst := path.Join(rule.Prefix, e.RelPath)
		if e.IsDir() {
			if !rule.IncludeFolders {
				continue
			}
			info, err := b.fs.Stat(e.Path)
			if err != nil {
				return err
			}
			if err := b.w.AddDir(dst, info); err != nil {
				return err
			}
			continue
		}

		if err := b.AddFile(e.Path, dst); err != nil {
			return err
		}
	}
	return nil
}

// AddFile copies the file src to dst
func (b *Builder) AddFile(src, dst string) error {
	file, err := b.fs.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	return b.w.AddFile(dst, stat, file)
}

// AddBytes adds generated content at dst
func (b *Builder) AddBytes(dst string, data []byte) error {
	return b.w.AddBytes(dst, data)
}

func cleanName(name string) string {
	return strings.TrimPrefix(name, "/")
}
