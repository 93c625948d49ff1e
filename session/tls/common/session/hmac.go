package session

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/pkg/errors"
)

// PSKHMAC names the hash a PSK is bound to. Values match the public
// enumeration applications configure keys with.
type PSKHMAC uint8

const (
	PSKHMACSHA224 PSKHMAC = iota
	PSKHMACSHA256
	PSKHMACSHA384
)

func (alg PSKHMAC) hash() (crypto.Hash, error) {
	switch alg {
	case PSKHMACSHA224:
		return crypto.SHA224, nil
	case PSKHMACSHA256:
		return crypto.SHA256, nil
	case PSKHMACSHA384:
		return crypto.SHA384, nil
	default:
		return 0, errors.Wrapf(ErrInvalidHMACAlgorithm, "tag %d", alg)
	}
}

func (alg PSKHMAC) String() string {
	switch alg {
	case PSKHMACSHA224:
		return "SHA224"
	case PSKHMACSHA256:
		return "SHA256"
	case PSKHMACSHA384:
		return "SHA384"
	default:
		return "unknown"
	}
}
