package unit

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding, so the same image always marshals to the
// same bytes (and therefore the same content hash).
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("unit: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// headerSize is magic (4 bytes) plus big-endian version (2 bytes).
const headerSize = 6

// Marshal serializes the image to its wire form: the "LMUI" magic, a
// big-endian format version, then the canonical CBOR payload.
func (img *Image) Marshal() ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	payload, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("unit: marshal image %q: %w", img.Name, err)
	}
	buf := make([]byte, 0, headerSize+len(payload))
	buf = append(buf, ImageMagic...)
	buf = binary.BigEndian.AppendUint16(buf, img.Version)
	return append(buf, payload...), nil
}

// Unmarshal deserializes an image from its wire form, checking the
// magic bytes and format version before decoding the payload.
func Unmarshal(data []byte) (*Image, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("unit: image data truncated (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], ImageMagic) {
		return nil, fmt.Errorf("unit: bad magic %q", data[:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version == 0 || version > ImageVersion {
		return nil, fmt.Errorf("unit: unsupported image version %d", version)
	}
	var img Image
	if err := cbor.Unmarshal(data[headerSize:], &img); err != nil {
		return nil, fmt.Errorf("unit: unmarshal image: %w", err)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &img, nil
}
