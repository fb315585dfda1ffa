// Package kepub opens the Kobo-flavored EPUB containers referenced by the
// annotation log. A Book owns one opened zip archive plus caches for raw
// member bytes and parsed member trees; containers are treated as immutable
// for the life of the process, so cache entries are never invalidated.
package kepub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/Jormii/IKobo/core/dom"
	"github.com/Jormii/IKobo/core/ref"
)

// ErrNotKepub marks a volume whose container is not a kepub archive.
// Callers skip such volumes instead of failing the run.
var ErrNotKepub = errors.New("not a kepub container")

const kepubSuffix = ".kepub.epub"

// IsKepub reports whether the volume identifier names a kepub container.
func IsKepub(volumeID string) bool {
	return strings.HasSuffix(volumeID, kepubSuffix)
}

// VolumePath resolves a volume identifier to a file path under the device
// root. The identifier must carry the firmware's file:///mnt/onboard/ prefix.
func VolumePath(volumeID, root string) (string, error) {
	rel, err := ref.ParseVolumeID(volumeID)
	if err != nil {
		return "", err
	}
	return ref.JoinDevicePath(root, rel), nil
}

// Book is one opened kepub container.
type Book struct {
	File     string // resolved path of the container on disk
	VolumeID string

	archive *zip.ReadCloser
	decoder *encoding.Decoder
	raw     map[string][]byte
	trees   map[string]*dom.Element
}

// Open resolves and opens the container for a volume and extracts its
// metadata. Members are decoded with the given text encoding (IANA name;
// "" means utf-8).
func Open(volumeID, root, textEncoding string) (*Book, *Metadata, error) {
	if !IsKepub(volumeID) {
		return nil, nil, fmt.Errorf("%s: %w", volumeID, ErrNotKepub)
	}

	file, err := VolumePath(volumeID, root)
	if err != nil {
		return nil, nil, err
	}

	decoder, err := newDecoder(textEncoding)
	if err != nil {
		return nil, nil, err
	}

	archive, err := zip.OpenReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", file, err)
	}

	book := &Book{
		File:     file,
		VolumeID: volumeID,
		archive:  archive,
		decoder:  decoder,
		raw:      make(map[string][]byte),
		trees:    make(map[string]*dom.Element),
	}

	meta, err := readMetadata(book)
	if err != nil {
		book.Close()
		return nil, nil, err
	}
	return book, meta, nil
}

// Close releases the underlying archive. Cached members stay readable.
func (b *Book) Close() error {
	return b.archive.Close()
}

// Read returns the raw bytes of an archive member, cached for the life of
// the Book. Member paths are /-separated regardless of host platform.
func (b *Book) Read(member string) ([]byte, error) {
	if data, ok := b.raw[member]; ok {
		return data, nil
	}

	for _, f := range b.archive.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %s: %w", member, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read member %s: %w", member, err)
		}
		b.raw[member] = data
		return data, nil
	}
	return nil, fmt.Errorf("member %s in %s: %w", member, b.File, fs.ErrNotExist)
}

// ReadString returns a member decoded with the configured text encoding.
func (b *Book) ReadString(member string) (string, error) {
	data, err := b.Read(member)
	if err != nil {
		return "", err
	}
	decoded, err := b.decoder.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode member %s: %w", member, err)
	}
	return string(decoded), nil
}

// Tree returns a member parsed as markup, cached for the life of the Book.
func (b *Book) Tree(member string) (*dom.Element, error) {
	if tree, ok := b.trees[member]; ok {
		return tree, nil
	}

	text, err := b.ReadString(member)
	if err != nil {
		return nil, err
	}
	tree, err := dom.Parse([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", member, err)
	}
	b.trees[member] = tree
	return tree, nil
}

func newDecoder(name string) (*encoding.Decoder, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}
	return enc.NewDecoder(), nil
}
