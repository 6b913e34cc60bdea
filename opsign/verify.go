// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package opsign verifies the detached ECDSA signature C7's intake
// endpoint receives over a ScanRequest, against the operator's declared
// public key. Key management itself is out of scope; Verifier only holds
// the public half handed to it at construction.
package opsign

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Verifier checks a detached secp256k1 ECDSA signature over the canonical
// JSON encoding of a message, mirroring original_source's
// bincode(message) -> sha256 -> secp256k1 pipeline with JSON standing in
// for bincode.
type Verifier struct {
	pubKey *btcec.PublicKey
}

// NewVerifier parses a hex-encoded compressed or uncompressed secp256k1
// public key.
func NewVerifier(hexPubKey string) (*Verifier, error) {
	raw, err := hex.DecodeString(hexPubKey)
	if err != nil {
		return nil, err
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, err
	}
	return FromPublicKey(pub), nil
}

// FromPublicKey builds a Verifier directly from an already-parsed key;
// mainly useful to tests outside this package that mint keys themselves.
func FromPublicKey(pub *btcec.PublicKey) *Verifier {
	return &Verifier{pubKey: pub}
}

// Verify reports whether hexDERSignature (hex-encoded DER) is a valid
// signature over message's canonical JSON encoding, under the operator's
// public key.
func (v *Verifier) Verify(message interface{}, hexDERSignature string) bool {
	encoded, err := json.Marshal(message)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(hexDERSignature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(encoded)
	return sig.Verify(digest[:], v.pubKey)
}
