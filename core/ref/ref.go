// Package ref parses the position-reference micro-formats the Kobo firmware
// writes into its annotation log. These strings are the most
// compatibility-sensitive surface of the whole pipeline: parsing is anchored
// and bit-exact, and a malformed reference is a fatal condition rather than
// something to recover from.
//
// Two formats exist:
//
//	content id:      /mnt/onboard/<relative-file>!!<member>[#<element-id>]
//	container path:  <tag>#<escaped-id>
//
// plus the volume identifier format file:///mnt/onboard/<relative-file>
// used to locate the book archive itself.
package ref

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	contentIDRe     = regexp.MustCompile(`^/mnt/onboard/(.*)!!(.*?)(?:#(.*))?$`)
	containerPathRe = regexp.MustCompile(`^(.*)#(.*)$`)
	volumeIDRe      = regexp.MustCompile(`^file:///mnt/onboard/(.*)$`)
)

// ContentID locates an annotated document: the book file on the device, the
// archive member holding the chapter markup, and optionally an element id
// within it.
type ContentID struct {
	File    string // absolute path to the book file, joined against the device root
	Member  string // member path inside the archive, always /-separated
	Element string // element id within the member, "" when absent
}

// ContainerPath locates one endpoint of an annotation inside a document:
// a tag name and the (unescaped) id of the element carrying it.
type ContainerPath struct {
	Tag string
	ID  string
}

// ParseContentID parses a content id, joining the embedded relative file
// path against the device root with platform separators.
func ParseContentID(s, root string) (*ContentID, error) {
	m := contentIDRe.FindStringSubmatch(s)
	if m == nil {
		return nil, &ParseError{Format: "content id", Input: s}
	}

	return &ContentID{
		File:    JoinDevicePath(root, m[1]),
		Member:  m[2],
		Element: m[3],
	}, nil
}

// ParseContainerPath parses a container path. Literal dots inside the id are
// stored escaped as `\.` and are unescaped here before use as a lookup key.
func ParseContainerPath(s string) (*ContainerPath, error) {
	m := containerPathRe.FindStringSubmatch(s)
	if m == nil {
		return nil, &ParseError{Format: "container path", Input: s}
	}

	return &ContainerPath{
		Tag: m[1],
		ID:  strings.ReplaceAll(m[2], `\.`, "."),
	}, nil
}

// ParseVolumeID extracts the relative file path from a volume identifier.
func ParseVolumeID(s string) (string, error) {
	m := volumeIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", &ParseError{Format: "volume id", Input: s}
	}
	return m[1], nil
}

// JoinDevicePath joins a /-separated device-relative path against the
// configured device root using the platform's separators.
func JoinDevicePath(root, rel string) string {
	parts := append([]string{root}, strings.Split(rel, "/")...)
	return filepath.Join(parts...)
}
