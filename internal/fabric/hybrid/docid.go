package hybrid

import (
	"strconv"
	"strings"
)

// DocID builds the canonical "<file_path>-<chunk_index>" identity shared
// across C4/C5/C8 (§4.2), so fusion can compare candidates by identity.
func DocID(filePath string, chunkIndex int) string {
	return filePath + "-" + strconv.Itoa(chunkIndex)
}

// ParseDocID reverses DocID. File paths may themselves contain '-', so the
// split is anchored on the last one; malformed ids report ok=false.
func ParseDocID(id string) (filePath string, chunkIndex int, ok bool) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 || idx == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return id[:idx], n, true
}
