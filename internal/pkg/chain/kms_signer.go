package chain

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// KMSSigner signs finalization extrinsics with the service-held executor key
// when a committee enables automatic execution. The key is an ecdsa secp256k1
// chain account whose private half never leaves Google KMS.
type KMSSigner struct {
	client  *kms.KeyManagementClient
	keyName string
	address string
}

func NewKMSSigner(ctx context.Context, keyResourceName string, executorAddress string) (*KMSSigner, error) {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, err
	}

	return &KMSSigner{
		client:  client,
		keyName: keyResourceName,
		address: executorAddress,
	}, nil
}

func (s *KMSSigner) Address() string {
	return s.address
}

func (s *KMSSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)

	response, err := s.client.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name: s.keyName,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest[:]},
		},
	})
	if err != nil {
		return nil, err
	}

	return response.Signature, nil
}

func (s *KMSSigner) Close() error {
	return s.client.Close()
}

// CreateExecutorKey provisions a new secp256k1 signing key in Google KMS and
// returns its cryptoKeyVersion resource name plus the PEM public key the
// executor account is derived from.
func CreateExecutorKey(ctx context.Context) (string, string, error) {
	googleKmsProjectId := viper.Get("GOOGLE_KMS_PROJECT_ID").(string)
	googleKmsLocationId := viper.Get("GOOGLE_KMS_LOCATION_ID").(string)
	googleKmsKeyRingId := viper.Get("GOOGLE_KMS_KEYRING_ID").(string)

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return "", "", err
	}
	defer client.Close()

	parent := fmt.Sprintf("projects/%s/locations/%s/keyRings/%s",
		googleKmsProjectId, googleKmsLocationId, googleKmsKeyRingId)
	keyId := fmt.Sprintf("grantflow-executor-key-%s", uuid.New().String())

	created, err := client.CreateCryptoKey(ctx, &kmspb.CreateCryptoKeyRequest{
		Parent:      parent,
		CryptoKeyId: keyId,
		CryptoKey: &kmspb.CryptoKey{
			Purpose: kmspb.CryptoKey_ASYMMETRIC_SIGN,
			VersionTemplate: &kmspb.CryptoKeyVersionTemplate{
				Algorithm: kmspb.CryptoKeyVersion_EC_SIGN_SECP256K1_SHA256,
			},
		},
	})
	if err != nil {
		return "", "", err
	}

	keyName := fmt.Sprintf("%s/cryptoKeyVersions/1", created.Name)

	pem, err := waitForPublicKey(ctx, client, keyName)
	if err != nil {
		return "", "", err
	}

	return keyName, pem, nil
}

func waitForPublicKey(ctx context.Context, client *kms.KeyManagementClient, keyName string) (string, error) {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    time.Minute,
		Factor: 5,
		Jitter: true,
	}

	deadline := time.Now().Add(60 * time.Second)

	for {
		response, err := client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: keyName})
		if err == nil {
			return response.Pem, nil
		}
		// key not generated yet, retry
		if !strings.Contains(err.Error(), "KEY_PENDING_GENERATION") {
			log.Error().Err(err).Msg(fmt.Sprintf("failed to get public key for KMS key %s", keyName))
			return "", err
		}
		log.Trace().Msg("KMS key is pending creation, will retry")

		if time.Now().After(deadline) {
			return "", fmt.Errorf("timeout while trying to get public key")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
}
