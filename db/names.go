package db

import (
	"path"
	"strconv"
	"strings"
	"unicode"
)

// SafeName returns a version of an uploaded file's name that is safe to use
// as the name of an archive entry: any directory components, including
// Windows-style ones, are removed, as are control characters. Names that are
// left empty, or consist only of dots, are replaced with "file-<fileID>".
func SafeName(name string, fileID int64) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}

		return r
	}, name))

	if strings.Trim(name, "./") == "" {
		return "file-" + strconv.FormatInt(fileID, 10)
	}

	return name
}

// uniqueNames hands out names that have not been handed out before, adding
// a " (n)" suffix before the extension of any repeated name.
type uniqueNames map[string]struct{}

func (u uniqueNames) add(name string) string {
	unique := name
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		if _, ok := u[unique]; !ok {
			break
		}

		unique = base + " (" + strconv.Itoa(n) + ")" + ext
	}

	u[unique] = struct{}{}

	return unique
}
