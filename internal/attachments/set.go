// Package attachments tracks the images and documents that accompany
// outbound replies.
package attachments

import (
	"path/filepath"
	"strings"
)

// Set is the attachment payload of a message.
type Set struct {
	Images    []string `json:"images"`
	Documents []string `json:"documents"`
}

// Empty reports whether the set holds no files.
func (s Set) Empty() bool {
	return len(s.Images) == 0 && len(s.Documents) == 0
}

// Union merges sets preserving first-seen order and dropping duplicates.
func Union(sets ...Set) Set {
	var out Set
	seenImg := make(map[string]bool)
	seenDoc := make(map[string]bool)
	for _, s := range sets {
		for _, p := range s.Images {
			if p != "" && !seenImg[p] {
				seenImg[p] = true
				out.Images = append(out.Images, p)
			}
		}
		for _, p := range s.Documents {
			if p != "" && !seenDoc[p] {
				seenDoc[p] = true
				out.Documents = append(out.Documents, p)
			}
		}
	}
	return out
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// IsImage reports whether the path names an image by extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// FromPaths sorts paths into images and documents.
func FromPaths(paths []string) Set {
	var s Set
	for _, p := range paths {
		if IsImage(p) {
			s.Images = append(s.Images, p)
		} else {
			s.Documents = append(s.Documents, p)
		}
	}
	return Union(s)
}

// SplitList parses a comma-separated file list as stored in block settings.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
