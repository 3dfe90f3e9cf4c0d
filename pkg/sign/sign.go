/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	"github.com/go-faster/errors"
	"github.com/sdmcore/engine/pkg/goal"
)

// Signer holds the private key this registration signs outbound goal
// events with.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner parses a PEM-encoded PKCS#1 or PKCS#8 RSA private key.
func NewSigner(pemBytes []byte) (*Signer, error) {
	key, err := parsePrivateKey(pemBytes)
	if err != nil {
		return nil, errors.Wrap(err, "sign: parsing private key")
	}
	return &Signer{key: key}, nil
}

// Sign computes the RSA-SHA512 signature over e's canonical form and sets
// e.Signature to its base64 encoding.
func (s *Signer) Sign(e *goal.Event) error {
	digest := sha512.Sum512([]byte(Canonical(e)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA512, digest[:])
	if err != nil {
		return errors.Wrap(err, "sign: rsa sign")
	}
	e.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// Verifier holds the set of public keys a goal event's signature may be
// checked against — configurable, and per §4.3 must include the
// published Atomist public key.
type Verifier struct {
	keys []*rsa.PublicKey
}

// NewVerifier parses zero or more PEM-encoded public keys (PKIX or a
// bare RSA public key) to check signatures against.
func NewVerifier(pemBlocks ...[]byte) (*Verifier, error) {
	v := &Verifier{}
	for _, b := range pemBlocks {
		key, err := parsePublicKey(b)
		if err != nil {
			return nil, errors.Wrap(err, "sign: parsing public key")
		}
		v.keys = append(v.keys, key)
	}
	return v, nil
}

// AddKey appends an already-parsed public key, e.g. the bundled Atomist
// public key loaded once at startup.
func (v *Verifier) AddKey(key *rsa.PublicKey) {
	v.keys = append(v.keys, key)
}

// Reason describes why verification failed, matching the two wordings
// §4.3/§7 require: "missing" or "invalid".
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
)

// Verify checks e.Signature against every configured key, succeeding on
// the first match (§4.3 "iterate verification keys, succeed on first
// match"). ok=false carries the Reason to report in the goal's failure
// description.
func (v *Verifier) Verify(e *goal.Event) (ok bool, reason Reason) {
	if e.Signature == "" {
		return false, ReasonMissing
	}
	sig, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		return false, ReasonInvalid
	}
	digest := sha512.Sum512([]byte(Canonical(e)))
	for _, key := range v.keys {
		if rsa.VerifyPKCS1v15(key, crypto.SHA512, digest[:], sig) == nil {
			return true, ""
		}
	}
	return false, ReasonInvalid
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "not a recognized RSA private key")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("PKCS8 key is not an RSA key")
	}
	return key, nil
}

func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "not a recognized RSA public key")
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PKIX key is not an RSA key")
	}
	return key, nil
}
