package media

import (
	"errors"
	"path"
	"strings"
)

// Kind distinguishes still images from looping clips.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Entry is one discovered background medium.
type Entry struct {
	URL  string `json:"url"`
	Kind Kind   `json:"type"`
}

var (
	// ErrUnsupportedMedia is returned for files whose type cannot be used as a background.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrEmptyMedia is returned when a medium decodes to zero pixels or frames.
	ErrEmptyMedia = errors.New("media has no pixels")
)

var kindByExt = map[string]Kind{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".gif":  KindVideo,
}

// KindOf classifies a path or URL by its extension.
func KindOf(name string) (Kind, bool) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	k, ok := kindByExt[strings.ToLower(path.Ext(name))]
	return k, ok
}
