package radio

import (
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

type tcpTransport struct {
	conn net.Conn
}

func openTCP(d Descriptor) (Transport, error) {
	conn, err := net.DialTimeout("tcp", d.Addr, d.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("radio: dial %s: %w", d.Addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// One frame per write; don't let the kernel batch them.
		_ = tc.SetNoDelay(true)
	}
	log.Info().Str("addr", d.Addr).Msg("radio: tcp connected")
	return &tcpTransport{conn: conn}, nil
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) Kind() Kind { return KindTCP }
