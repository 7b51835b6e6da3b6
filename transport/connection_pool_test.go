package transport

import (
	"net"
	"testing"
)

func addrFor(i byte) *net.TCPAddr {
	return &net.TCPAddr{
		IP:   net.IPv4('1', '2', '3', i),
		Port: 5060,
	}
}

func TestConnectionPoolAddGet(t *testing.T) {
	pool := NewConnectionPool()
	c := &conn{Conn: &net.TCPConn{}}

	addr := addrFor('4')
	pool.Add(addr.String(), c)

	got := pool.Get(addrFor('4').String())
	if got != c {
		t.Fatal("connection not found by address")
	}
}

func TestConnectionPoolDel(t *testing.T) {
	pool := NewConnectionPool()
	c := &conn{Conn: &net.TCPConn{}}
	addr := addrFor('5').String()

	pool.Add(addr, c)
	pool.Del(addr)

	if got := pool.Get(addr); got != nil {
		t.Fatal("connection still present after Del")
	}
}

func BenchmarkConnectionPool(b *testing.B) {
	pool := NewConnectionPool()
	for i := 0; i < b.N; i++ {
		c := &conn{Conn: &net.TCPConn{}}
		addr := addrFor(byte(i)).String()
		pool.Add(addr, c)
		if got := pool.Get(addr); got != c {
			b.Fatal("connection not found by address")
		}
	}
}

func BenchmarkTCPPool(b *testing.B) {
	pool := NewTCPPool()
	for i := 0; i < b.N; i++ {
		c := &net.TCPConn{}
		addr := addrFor(byte(i)).String()
		pool.Add(addr, c)
		if got := pool.Get(addr); got != c {
			b.Fatal("connection not found by address")
		}
	}
}
