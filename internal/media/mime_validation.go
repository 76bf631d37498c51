package media

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

var allowedImageTypes = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPEG",
}

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// sniffImageType detects the content type from the file header and checks it against the
// allowed image formats.
func sniffImageType(filename string, head []byte) (string, error) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("extension %q not allowed", ext)
	}
	detected := http.DetectContentType(head)
	if _, ok := allowedImageTypes[detected]; !ok {
		return "", fmt.Errorf("content type %q not allowed", detected)
	}
	return detected, nil
}

func allowedDescription() string {
	return humanReadableList([]string{"PNG", "JPEG"})
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}
