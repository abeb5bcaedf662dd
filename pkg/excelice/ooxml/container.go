package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html/charset"
)

// ErrCorrupt indicates data that is not a readable workbook package.
var ErrCorrupt = errors.New("corrupt workbook package")

// ErrEncrypted indicates a password-protected workbook.
var ErrEncrypted = errors.New("workbook is encrypted")

// ErrLegacyFormat indicates a binary workbook from before the XML format.
var ErrLegacyFormat = errors.New("legacy binary workbook")

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// container is the zip package of a workbook. Parts keep their original
// order and compressed bytes so unchanged parts are written back as read.
type container struct {
	raw   []byte
	files []*zip.File
	index map[string]*zip.File
}

func openContainer(data []byte) (*container, error) {
	if bytes.HasPrefix(data, cfbSignature) {
		return nil, classifyCompound(data)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c := &container{raw: data, index: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		c.files = append(c.files, f)
		c.index[strings.ToLower(strings.TrimPrefix(f.Name, "/"))] = f
	}
	return c, nil
}

// classifyCompound tells an encrypted package from a legacy .xls file.
// Both are OLE compound documents.
func classifyCompound(data []byte) error {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			return fmt.Errorf("%w: %w", ErrCorrupt, ErrEncrypted)
		case "Workbook", "Book":
			return fmt.Errorf("%w: %w", ErrCorrupt, ErrLegacyFormat)
		}
	}
	return fmt.Errorf("%w: compound document without a workbook", ErrCorrupt)
}

func (c *container) file(name string) (*zip.File, bool) {
	f, ok := c.index[strings.ToLower(strings.TrimPrefix(name, "/"))]
	return f, ok
}

func (c *container) has(name string) bool {
	_, ok := c.file(name)
	return ok
}

// read returns a part's content, transcoded to UTF-8 when its XML
// declaration names another encoding.
func (c *container) read(name string) ([]byte, error) {
	f, ok := c.file(name)
	if !ok {
		return nil, fmt.Errorf("%w: missing part %s", ErrCorrupt, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return toUTF8(data)
}

var declEncoding = regexp.MustCompile(`^<\?xml[^>]*encoding=["']([^"']+)["']`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	m := declEncoding.FindSubmatchIndex(data)
	if m == nil {
		return data, nil
	}
	label := strings.ToLower(string(data[m[2]:m[3]]))
	if label == "utf-8" || label == "utf8" {
		return data, nil
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m = declEncoding.FindSubmatchIndex(out); m != nil {
		out = append(append(append([]byte(nil), out[:m[2]]...), "UTF-8"...), out[m[3]:]...)
	}
	return out, nil
}

// write packs the container with the given replacements. Parts mapped to
// nil are dropped; parts not in the container are appended in name order.
func (c *container) write(w io.Writer, repl map[string][]byte) error {
	zw := zip.NewWriter(w)
	byKey := make(map[string][]byte, len(repl))
	for name, data := range repl {
		byKey[strings.ToLower(name)] = data
	}
	seen := make(map[string]bool, len(repl))
	for _, f := range c.files {
		key := strings.ToLower(strings.TrimPrefix(f.Name, "/"))
		data, replaced := byKey[key]
		if replaced {
			seen[key] = true
			if data == nil {
				continue
			}
			// the raw DOS timestamp keeps repeated saves byte-identical
			fh := &zip.FileHeader{
				Name:         f.Name,
				Method:       zip.Deflate,
				ModifiedTime: f.ModifiedTime,
				ModifiedDate: f.ModifiedDate,
			}
			if err := writePart(zw, fh, data); err != nil {
				return err
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copy part %s: %w", f.Name, err)
		}
	}

	var added []string
	for name, data := range repl {
		if data != nil && !seen[strings.ToLower(name)] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		fh := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if err := writePart(zw, fh, repl[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writePart(zw *zip.Writer, fh *zip.FileHeader, data []byte) error {
	pw, err := zw.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("create part %s: %w", fh.Name, err)
	}
	if _, err := pw.Write(data); err != nil {
		return fmt.Errorf("write part %s: %w", fh.Name, err)
	}
	return nil
}
