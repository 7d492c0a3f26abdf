// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// SecurityLevel selects the authentication handshake applied to an
// endpoint. The levels are ordered from no protection to public-key
// authentication and encryption.
type SecurityLevel int

const (
	// Grasslands endpoints accept anyone.
	Grasslands SecurityLevel = iota
	// Strawhouse endpoints check the peer address against an allow-list.
	Strawhouse
	// Woodhouse endpoints additionally require plaintext credentials.
	Woodhouse
	// Stonehouse endpoints require CURVE public-key authentication.
	Stonehouse
)

func (s SecurityLevel) String() string {
	switch s {
	case Strawhouse:
		return "strawhouse"
	case Woodhouse:
		return "woodhouse"
	case Stonehouse:
		return "stonehouse"
	}
	return "grasslands"
}

// Keypair is a Z85-encoded CURVE key pair. The secret may be empty when
// only the public half is known (a server key distributed to clients).
type Keypair struct {
	Public string
	Secret string
}

// NewKeypair generates a fresh CURVE key pair.
func NewKeypair() (Keypair, error) {
	pub, sec, err := zmq.NewCurveKeypair()
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Public: pub, Secret: sec}, nil
}

// ZAPOptions is the authorization blob attached to every endpoint. The
// interpretation of the fields depends on Level and on whether the holder
// is the authenticating (server) side of the connection.
type ZAPOptions struct {
	Level  SecurityLevel
	Domain string
	// Server marks the endpoint as the authenticating side.
	Server bool
	// AllowedAddresses feeds the strawhouse allow-list.
	AllowedAddresses []string
	// Username and Password are the woodhouse client credentials.
	Username string
	Password string
	// ServerKeys holds at least the server public key on clients and the
	// full pair on the server itself (stonehouse).
	ServerKeys Keypair
	// ClientKeys is the client's own pair (stonehouse).
	ClientKeys Keypair
}

var authOnce sync.Once

// startAuthenticator starts the process-wide ZAP handler. Idempotent; the
// handler lives until the process exits.
func startAuthenticator() error {
	var err error
	authOnce.Do(func() {
		err = zmq.AuthStart()
	})
	return err
}

func (z *ZAPOptions) domain() string {
	if z.Domain == "" {
		return "global"
	}
	return z.Domain
}

// Apply configures sock for the selected security level. It must be called
// before Bind or Connect.
func (z *ZAPOptions) Apply(sock *zmq.Socket) error {
	switch z.Level {
	case Grasslands:
		return nil
	case Strawhouse:
		if !z.Server {
			return nil
		}
		if err := startAuthenticator(); err != nil {
			return err
		}
		zmq.AuthAllow(z.domain(), z.AllowedAddresses...)
		return sock.SetZapDomain(z.domain())
	case Woodhouse:
		if err := startAuthenticator(); err != nil {
			return err
		}
		if z.Server {
			zmq.AuthAllow(z.domain(), z.AllowedAddresses...)
			if err := sock.SetPlainServer(1); err != nil {
				return err
			}
			return sock.SetZapDomain(z.domain())
		}
		if err := sock.SetPlainUsername(z.Username); err != nil {
			return err
		}
		return sock.SetPlainPassword(z.Password)
	case Stonehouse:
		if z.Server {
			if err := startAuthenticator(); err != nil {
				return err
			}
			zmq.AuthCurveAdd(z.domain(), zmq.CURVE_ALLOW_ANY)
			if err := sock.SetZapDomain(z.domain()); err != nil {
				return err
			}
			return sock.ServerAuthCurve(z.domain(), z.ServerKeys.Secret)
		}
		if z.ServerKeys.Public == "" {
			return errors.New("stonehouse client requires the server public key")
		}
		return sock.ClientAuthCurve(z.ServerKeys.Public,
			z.ClientKeys.Public, z.ClientKeys.Secret)
	}
	return fmt.Errorf("unknown security level %d", z.Level)
}
