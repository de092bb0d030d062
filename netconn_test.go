package mqttgo

import (
	"net"
	"time"
)

// discardConn is a minimal net.Conn that accepts and discards writes, for
// exercising Send paths without a real socket.
type discardConn struct{}

func (discardConn) Read([]byte) (int, error)         { return 0, nil }
func (discardConn) Write(b []byte) (int, error)       { return len(b), nil }
func (discardConn) Close() error                      { return nil }
func (discardConn) LocalAddr() net.Addr               { return nil }
func (discardConn) RemoteAddr() net.Addr              { return nil }
func (discardConn) SetDeadline(time.Time) error       { return nil }
func (discardConn) SetReadDeadline(time.Time) error   { return nil }
func (discardConn) SetWriteDeadline(time.Time) error  { return nil }
