package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion host without the suffix.
	OnionV3Length = 56

	// OnionV3TotalLength is the length of a v3 onion host including ".onion".
	OnionV3TotalLength = 62

	// OnionV3Version is the version byte of v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the top-level domain of onion services.
	OnionSuffix = ".onion"
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (with or without a port) is in the
// .onion domain. Subdomains of an onion service count.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(hostOnly(host)), OnionSuffix)
}

// ValidateOnionHost checks that host names a reachable onion service: a
// v3 address with a correct checksum, optionally below a subdomain.
// Hosts outside the .onion domain are accepted unchanged.
func ValidateOnionHost(host string) error {
	if !IsOnionHost(host) {
		return nil
	}
	h := strings.ToLower(hostOnly(host))

	// "www.<address>.onion" is served by <address>.onion.
	labels := strings.Split(strings.TrimSuffix(h, OnionSuffix), ".")
	service := labels[len(labels)-1] + OnionSuffix

	if IsValidV3Address(service) {
		return nil
	}
	if IsV2Address(service) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}

func hostOnly(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}

// IsValidV3Address checks the format and the checksum of a v3 onion
// address. Upper case input is accepted.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	onionPart := strings.TrimSuffix(address, OnionSuffix)
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(onionPart))
	if err != nil {
		return false
	}

	// public key (32) || checksum (2) || version (1)
	if len(decoded) != 35 {
		return false
	}
	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether address has the v2 onion format.
// V2 services stopped working in October 2021.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ComputeV3AddressFromPublicKey returns the v3 onion address of a 32 byte
// ed25519 public key.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	checksum := computeV3Checksum(pubkey, OnionV3Version)
	data := make([]byte, 35)
	copy(data[:32], pubkey)
	copy(data[32:34], checksum)
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
