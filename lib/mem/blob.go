// Package mem provides owned byte buffers for sensitive material.
//
// A Blob never hands its backing array to the garbage collector while it
// still holds data: every release path overwrites the full capacity first.
package mem

// Blob is an owned byte buffer. The zero value is an empty blob.
type Blob struct {
	data []byte
}

// Bytes returns the current contents. The slice aliases the blob and is
// invalidated by Set, Realloc and Free.
func (b *Blob) Bytes() []byte { return b.data }

func (b *Blob) Len() int { return len(b.data) }

func (b *Blob) IsEmpty() bool { return len(b.data) == 0 }

// Set replaces the contents with a copy of p in an allocation of exactly
// len(p) bytes. The previous contents are zeroized.
func (b *Blob) Set(p []byte) {
	fresh := make([]byte, len(p))
	copy(fresh, p)

	b.Free()
	b.data = fresh
}

// Realloc resizes the blob to n bytes. Existing bytes are preserved up to n,
// new bytes are zero. The old backing array is zeroized when it is replaced.
func (b *Blob) Realloc(n int) {
	if n == len(b.data) {
		return
	}
	if n < 0 {
		n = 0
	}

	fresh := make([]byte, n)
	copy(fresh, b.data)

	b.Free()
	b.data = fresh
}

// Free zeroizes the full capacity and drops the buffer.
func (b *Blob) Free() {
	if b.data == nil {
		return
	}
	clear(b.data[:cap(b.data)])
	b.data = nil
}

// Clone returns an independent copy.
func (b *Blob) Clone() Blob {
	var c Blob
	if b.data != nil {
		c.Set(b.data)
	}
	return c
}

// Zero overwrites dst in place. Used for short-lived intermediate secrets
// that never live in a Blob.
func Zero(dst []byte) {
	clear(dst)
}
