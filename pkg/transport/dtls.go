package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/apex/log"
	"github.com/pion/dtls/v3"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
)

// handshakeTimeout bounds the DTLS handshake when the caller's context
// carries no deadline.
const handshakeTimeout = 20 * time.Second

// pskIdentity is the client identity sent in the PSK handshake.
const pskIdentity = "Commissioner"

// Dialer opens DTLS-secured Border Agent sessions with the configured
// credentials. It implements commissioner.Dialer.
type Dialer struct {
	creds  commissioner.Credentials
	logger log.Interface
}

// NewDialer builds a Dialer. PSKc credentials select the PSK cipher
// suite; X.509 credentials select ECDHE-ECDSA.
func NewDialer(creds commissioner.Credentials, logger log.Interface) *Dialer {
	if logger == nil {
		logger = log.Log
	}
	return &Dialer{creds: creds, logger: logger}
}

// Dial connects to the Border Agent and completes the DTLS handshake.
func (d *Dialer) Dial(ctx context.Context, addr string, port uint16) (commissioner.TransportSession, error) {
	config, err := d.dtlsConfig()
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid border agent address %q", commissioner.ErrInvalidArgs, addr)
	}
	remote := &net.UDPAddr{IP: ip, Port: int(port)}

	packetConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commissioner.ErrTransportFailed, err)
	}

	conn, err := dtls.Client(packetConn, remote, config)
	if err != nil {
		packetConn.Close()
		return nil, fmt.Errorf("%w: %v", commissioner.ErrTransportFailed, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: dtls handshake: %v", commissioner.ErrSecurity, err)
	}

	d.logger.WithField("peer", remote.String()).Info("dtls session established")
	return NewSession(conn, remote.String(), d.logger), nil
}

func (d *Dialer) dtlsConfig() (*dtls.Config, error) {
	if len(d.creds.PSKc) > 0 {
		pskc := d.creds.PSKc
		return &dtls.Config{
			PSK: func(hint []byte) ([]byte, error) {
				return pskc, nil
			},
			PSKIdentityHint: []byte(pskIdentity),
			CipherSuites:    []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_CCM_8},
		}, nil
	}

	certificate, err := tls.X509KeyPair(trimNul(d.creds.Certificate), trimNul(d.creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: loading X.509 key pair: %v", commissioner.ErrSecurity, err)
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(trimNul(d.creds.TrustAnchor)) {
		return nil, fmt.Errorf("%w: trust anchor carries no certificate", commissioner.ErrSecurity)
	}

	return &dtls.Config{
		Certificates: []tls.Certificate{certificate},
		RootCAs:      roots,
		CipherSuites: []dtls.CipherSuiteID{dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8},
	}, nil
}

// trimNul drops the NUL terminator credential files carry.
func trimNul(pem []byte) []byte {
	return bytes.TrimRight(pem, "\x00")
}
