package sip

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderParamsToStringRoundTrips(t *testing.T) {
	hp := NewParams()
	hp.Add("tag", "aaa")
	hp.Add("branch", "bbb")

	for _, sep := range []uint8{';', '&', '?'} {
		rendered := hp.ToString(sep)
		parts := strings.Split(rendered, string(sep))
		assert.Equal(t, strings.Join(parts, string(sep)), rendered)
	}
}

func TestHeaderParamsAddOverwritesExistingKey(t *testing.T) {
	hp := NewParams()
	hp.Add("transport", "udp")
	hp.Add("transport", "tcp")

	val, ok := hp.Get("transport")
	assert.True(t, ok)
	assert.Equal(t, "tcp", val)
	assert.Equal(t, 1, hp.Length())
}

func TestHeaderParamsRemove(t *testing.T) {
	hp := NewParams()
	hp.Add("lr", "")
	hp.Add("ttl", "1")
	hp.Remove("lr")

	assert.False(t, hp.Has("lr"))
	assert.True(t, hp.Has("ttl"))
}

func BenchmarkHeaderParams(b *testing.B) {
	run := func(b *testing.B, hp HeaderParams) {
		hp = hp.Add("branch", "assadkjkgeijdas")
		hp = hp.Add("received", "127.0.0.1")
		hp = hp.Add("toremove", "removeme")
		hp = hp.Remove("toremove")

		if _, exists := hp.Get("received"); !exists {
			b.Fatal("received does not exist")
		}

		rendered := hp.ToString(';')
		if len(rendered) == 0 {
			b.Fatal("params rendered empty")
		}

		if rendered != "branch=assadkjkgeijdas;received=127.0.0.1" &&
			rendered != "received=127.0.0.1;branch=assadkjkgeijdas" {
			b.Fatal("unexpected rendering")
		}
	}

	b.Run("slice", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			run(b, NewParams())
		}
	})
}

func BenchmarkStringConcatVsBuilder(b *testing.B) {
	header, value := "Call-ID", "abcdefge1234566"
	b.ResetTimer()

	b.Run("concat", func(b *testing.B) {
		var buf strings.Builder
		for i := 0; i < b.N; i++ {
			buf.WriteString(header + ":" + value)
		}
		if buf.Len() == 0 {
			b.FailNow()
		}
	})

	b.Run("builder", func(b *testing.B) {
		var buf strings.Builder
		for i := 0; i < b.N; i++ {
			buf.WriteString(header)
			buf.WriteString(":")
			buf.WriteString(value)
		}
		if buf.Len() == 0 {
			b.FailNow()
		}
	})
}
