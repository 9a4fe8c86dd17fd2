// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shaderpack

import (
	"bytes"
	"io"
	"sync"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) *Builder {
	header.Index = nil
	return &Builder{
		header: header,
	}
}

type pendingModule struct {

	// Name is the name the module is looked up by
	Name string

	// Size in uncompressed state
	Size int64

	Compressed []byte
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, this Builder
// is the way to create one. Whenever Add is called the module is
// compressed in memory, WriteTo finally bundles everything together
// and writes the archive out.
type Builder struct {
	io.WriterTo

	header Header

	mutex   sync.Mutex
	modules []pendingModule
}

// Add appends module data to the builder with a given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	written, err := io.Copy(writer, r)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.modules = append(b.modules, pendingModule{
		Name:       name,
		Size:       written,
		Compressed: compressed.Bytes(),
	})
	return nil
}

// WriteTo bundles and writes all of the modules added to the Builder
// into a pack that is ready to use.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	header.Index = nil
	for _, m := range b.modules {
		header.Index = append(header.Index, IndexEntry{
			Name:           m.Name,
			Size:           m.Size,
			CompressedSize: int64(len(m.Compressed)),
		})
	}

	// Offsets are laid out against the reserved header size, the gap
	// between the encoded header and the data section is padded.
	reserved := header.MaxExpectedSize()
	offset := int64(MagicLength) + HeaderSizeNumberLength + reserved
	for i := range header.Index {
		header.Index[i].Offset = offset
		offset += header.Index[i].CompressedSize
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}
	if int64(len(rawHeader)) > reserved {
		return 0, ErrFileFormat
	}

	var total int64
	for _, chunk := range [][]byte{
		magic[:],
		int64ToBinary(int64(len(rawHeader))),
		rawHeader,
		make([]byte, reserved-int64(len(rawHeader))),
	} {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for _, m := range b.modules {
		n, err := w.Write(m.Compressed)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	b.modules = b.modules[:0]
	return total, nil
}
