package annotation

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// SessionID hashes the sorted list of image paths. Identical item sets get the
// same identifier, any added, removed or renamed path gets a different one.
func SessionID(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	hasher := md5.New()
	hasher.Write([]byte(pathListJSON(sorted)))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// SessionFilename is the save file name for a task, user and session id
func SessionFilename(task, username, id string, contextMode bool) string {
	name := strings.ReplaceAll(task, " ", "_") + fmt.Sprintf("_#%s#-%s", username, id)
	if contextMode {
		return name + "_context.csv"
	}
	return name + ".csv"
}

// pathListJSON encodes the list as an ASCII-only JSON array with ", "
// separators so that names stay compatible with saves made by the notebook
// annotator.
func pathListJSON(paths []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range paths {
		if i > 0 {
			b.WriteString(", ")
		}
		writeJSONString(&b, p)
	}
	b.WriteByte(']')
	return b.String()
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r >= 0x20 && r <= 0x7e {
				b.WriteRune(r)
				continue
			}
			if r > 0xffff {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
				continue
			}
			fmt.Fprintf(b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
}
