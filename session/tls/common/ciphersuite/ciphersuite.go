package ciphersuite

import (
	"crypto"
	"runtime"
	sliceutil "tls-psk/lib/slice"

	"golang.org/x/sys/cpu"
)

type ID [2]uint8

func (id ID) Bytes() []byte {
	return id[:]
}

type Suite struct {
	id   ID
	aead AEAD
	hash crypto.Hash
}

func (s Suite) ID() ID            { return s.id }
func (s Suite) AEAD() AEAD        { return s.aead }
func (s Suite) Hash() crypto.Hash { return s.hash }

// IsZero reports whether the suite is unset.
func (s Suite) IsZero() bool { return s.hash == 0 }

func NewSuite(id ID, aead AEAD, hash crypto.Hash) Suite {
	return Suite{
		id:   id,
		aead: aead,
		hash: hash,
	}
}

var suites = make(map[ID]Suite)

func register(s Suite) ID { suites[s.ID()] = s; return s.ID() }

func Get(id ID) (Suite, bool) {
	s, ok := suites[id]
	return s, ok
}

func AsIDs(suites []Suite) []ID {
	return sliceutil.Map(suites, func(suite Suite) ID {
		return suite.ID()
	})
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#appendix-B.4
var (
	TLS_AES_128_GCM_SHA256       = register(Suite{ID([2]uint8{0x13, 0x01}), AEAD{16, aeadAES_128_GCM}, crypto.SHA256})
	TLS_AES_256_GCM_SHA384       = register(Suite{ID([2]uint8{0x13, 0x02}), AEAD{32, aeadAES_256_GCM}, crypto.SHA384})
	TLS_CHACHA20_POLY1305_SHA256 = register(Suite{ID([2]uint8{0x13, 0x03}), AEAD{32, aeadCHACHA20_POLY1305}, crypto.SHA256})

	TLS_AES_128_CCM_SHA256   = ID([2]uint8{0x13, 0x04}) // NOTE: Unimplemented.
	TLS_AES_128_CCM_8_SHA256 = ID([2]uint8{0x13, 0x05}) // NOTE: Unimplemented.
)

var (
	hasGCMAsmAMD64 = cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ
	hasGCMAsmARM64 = cpu.ARM64.HasAES && cpu.ARM64.HasPMULL
	hasGCMAsmS390X = cpu.S390X.HasAES && cpu.S390X.HasAESCTR && cpu.S390X.HasGHASH

	hasAESGCMHardwareSupport = runtime.GOARCH == "amd64" && hasGCMAsmAMD64 ||
		runtime.GOARCH == "arm64" && hasGCMAsmARM64 ||
		runtime.GOARCH == "s390x" && hasGCMAsmS390X
)

// Default returns implemented suites in preference order.
// AES-GCM goes first only when the CPU accelerates it.
func Default() []Suite {
	ids := []ID{TLS_AES_128_GCM_SHA256, TLS_AES_256_GCM_SHA384, TLS_CHACHA20_POLY1305_SHA256}
	if !hasAESGCMHardwareSupport {
		ids = []ID{TLS_CHACHA20_POLY1305_SHA256, TLS_AES_128_GCM_SHA256, TLS_AES_256_GCM_SHA384}
	}

	return sliceutil.Map(ids, func(id ID) Suite { return suites[id] })
}
