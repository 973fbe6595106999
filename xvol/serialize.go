/*
	This file supports compression of the raw voxel array payload appended to
	the XML header of a volume file. Whether a payload is compressed is recorded
	in the header's <compressed> element, so the codec here carries no format
	byte of its own.
*/

package xvol

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// CompressPayload returns the zlib-compressed form of the voxel array bytes.
func CompressPayload(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	w := zlib.NewWriter(&buffer)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecompressPayload inflates a zlib-compressed voxel array payload.
func DecompressPayload(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
