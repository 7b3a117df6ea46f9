package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              QUIC TLS 证书
// ============================================================================

// certValidity 自签名证书有效期
const certValidity = 365 * 24 * time.Hour

// Certificate 生成以身份密钥签名的自签名证书
//
// 证书公钥即身份公钥，对端可从证书直接派生 PeerID。
func (i *Identity) Certificate() (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: i.id.String()},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, i.pub, i.priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  i.priv,
	}, nil
}

// TLSConfig 返回 QUIC 使用的 TLS 配置
//
// 证书链不走 CA 校验，而是在 VerifyPeerCertificate 中确认：
//   - 证书公钥为 Ed25519
//   - 证书自签名有效
//   - 如指定 expected，派生出的 PeerID 必须一致
func (i *Identity) TLSConfig(alpn string, expected types.PeerID) (*tls.Config, error) {
	cert, err := i.Certificate()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true, // #nosec G402 -- 对端身份由 VerifyPeerCertificate 校验
		ClientAuth:         tls.RequireAnyClientCert,
		NextProtos:         []string{alpn},
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			id, err := PeerIDFromRawCerts(rawCerts)
			if err != nil {
				return err
			}
			if expected != types.EmptyPeerID && id != expected {
				return fmt.Errorf("peer id mismatch: expected %s, got %s", expected, id)
			}
			return nil
		},
	}, nil
}

// PeerIDFromRawCerts 从对端证书链派生 PeerID
func PeerIDFromRawCerts(rawCerts [][]byte) (types.PeerID, error) {
	if len(rawCerts) == 0 {
		return types.EmptyPeerID, ErrNoPeerCertificate
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("parse certificate: %w", err)
	}
	return PeerIDFromCertificate(cert)
}

// PeerIDFromCertificate 从证书公钥派生 PeerID，并校验自签名
func PeerIDFromCertificate(cert *x509.Certificate) (types.PeerID, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return types.EmptyPeerID, fmt.Errorf("%w: certificate key %T", ErrUnsupportedKeyType, cert.PublicKey)
	}
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return types.EmptyPeerID, fmt.Errorf("certificate signature: %w", err)
	}
	return PeerIDFromPublicKey(pub)
}
