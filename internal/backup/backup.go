// Package backup snapshots the device's annotation database into a tar.xz
// archive. Each snapshot carries a manifest with a unique id and BLAKE3
// digests, so archives can be told apart and verified later without opening
// the database itself.
package backup

import (
	"archive/tar"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// databaseMember is the device-relative path of the annotation log.
const databaseMember = ".kobo/KoboReader.sqlite"

// Manifest describes one snapshot. It is stored as manifest.json inside
// the archive.
type Manifest struct {
	ID      string     `json:"id"`
	Created time.Time  `json:"created"`
	Files   []FileInfo `json:"files"`
}

// FileInfo records one archived file and its digest.
type FileInfo struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	BLAKE3 string `json:"blake3"`
}

// Snapshot archives the device database into outDir and returns the
// archive path. The archive name embeds the snapshot id:
// kobo-backup-<id>.tar.xz.
func Snapshot(deviceRoot, outDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(deviceRoot, filepath.FromSlash(databaseMember)))
	if err != nil {
		return "", fmt.Errorf("read device database: %w", err)
	}

	digest := blake3.Sum256(data)
	manifest := Manifest{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Files: []FileInfo{{
			Path:   databaseMember,
			Size:   int64(len(data)),
			BLAKE3: hex.EncodeToString(digest[:]),
		}},
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}

	dstPath := filepath.Join(outDir, "kobo-backup-"+manifest.ID+".tar.xz")
	f, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	xzw, err := xz.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	now := manifest.Created
	entries := []struct {
		name string
		data []byte
	}{
		{"manifest.json", manifestData},
		{databaseMember, data},
	}
	for _, entry := range entries {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o644,
			Size:    int64(len(entry.data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return "", fmt.Errorf("write archive header: %w", err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			return "", fmt.Errorf("write archive entry: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := xzw.Close(); err != nil {
		return "", err
	}
	return dstPath, f.Close()
}

// ReadManifest extracts the manifest from a snapshot archive.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}

	tr := tar.NewReader(xzr)
	for {
		header, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("manifest.json not found in %s: %w", path, err)
		}
		if header.Name != "manifest.json" {
			continue
		}
		var manifest Manifest
		if err := json.NewDecoder(tr).Decode(&manifest); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		return &manifest, nil
	}
}
