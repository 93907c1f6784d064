package tcf

import (
	"encoding/base64"
	"strings"
)

// blobEncoding is the RFC 1421 alphabet with '=' padding (spec §6
// "Binary blobs are Base64"); this is the same alphabet as the
// standard MIME/RFC 4648 encoding, so the stdlib encoder applies
// directly with no custom alphabet needed.
var blobEncoding = base64.StdEncoding

// EncodeBlob base64-encodes a binary value for inline transport inside
// a JSON argument (e.g. a memory read's byte payload).
func EncodeBlob(data []byte) string {
	return blobEncoding.EncodeToString(data)
}

// DecodeBlob reverses EncodeBlob, rejecting any embedded whitespace
// (including CR and LF) since the wire format tolerates none.
func DecodeBlob(s string) ([]byte, error) {
	// The stdlib decoder skips CR and LF; refuse them here.
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return nil, base64.CorruptInputError(i)
	}
	return blobEncoding.DecodeString(s)
}
