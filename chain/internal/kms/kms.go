// Package kms wraps the AWS KMS client used to sign with asymmetric secp256k1 keys.
package kms

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
)

// Client is the subset of the KMS API used by the signers.
type Client interface {
	GetPublicKey(input *kmslib.GetPublicKeyInput) (*kmslib.GetPublicKeyOutput, error)
	Sign(input *kmslib.SignInput) (*kmslib.SignOutput, error)
}

// ClientConfig identifies the KMS key to sign with.
type ClientConfig struct {
	KeyID     string
	KeyRegion string
	// AWSProfile is optional. The environment decides the credentials when empty.
	AWSProfile string
}

func (c ClientConfig) validate() error {
	if c.KeyID == "" {
		return errors.New("KMS key ID is required")
	}
	if c.KeyRegion == "" {
		return errors.New("KMS key region is required")
	}

	return nil
}

// NewClient creates a KMS client for the region of cfg.
func NewClient(cfg ClientConfig) (Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid KMS config: %w", err)
	}

	opts := session.Options{
		Config: aws.Config{Region: aws.String(cfg.KeyRegion)},
	}
	if cfg.AWSProfile != "" {
		opts.Profile = cfg.AWSProfile
		opts.SharedConfigState = session.SharedConfigEnable
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return kmslib.New(sess), nil
}

// SPKI is the ASN.1 SubjectPublicKeyInfo structure returned by GetPublicKey.
type SPKI struct {
	AlgorithmIdentifier SPKIAlgorithmIdentifier
	SubjectPublicKey    asn1.BitString
}

// SPKIAlgorithmIdentifier identifies the key algorithm and curve of an SPKI.
type SPKIAlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// ECDSASig is the ASN.1 DER signature returned by Sign.
type ECDSASig struct {
	R asn1.RawValue
	S asn1.RawValue
}
