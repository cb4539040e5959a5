// ABOUTME: Built-in EICAR test signature for end-to-end detection checks
// ABOUTME: Anchored on the first eight bytes with the remainder verified by SHA-256

package feeds

import (
	"github.com/google/uuid"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// eicarTestString is the 68-byte EICAR anti-malware test file.
// See https://www.eicar.org/download-anti-malware-testfile/
const eicarTestString = "X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*"

const eicarAnchorLength = 8

// EICARSignatureID is stable so repeated installs update one catalog entry.
var EICARSignatureID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.eicar.org/#eicar-test-file")).String()

// EICARTestString returns the EICAR test file content.
func EICARTestString() string {
	return eicarTestString
}

// EICARSignature returns the built-in EICAR signature.
func EICARSignature() *types.Signature {
	// The pattern and anchor length are constants, so construction cannot fail.
	sig, _ := types.NewSignature("EICAR-Test-File", []byte(eicarTestString), eicarAnchorLength)
	sig.ID = EICARSignatureID
	sig.FileType = "com"
	return sig
}
