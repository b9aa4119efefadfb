package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/mymume/internal/cache"
)

type fakeServices struct {
	srv     *httptest.Server
	lookups atomic.Int32
	ipify   atomic.Int32
	status  int
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{status: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ipify", func(w http.ResponseWriter, r *http.Request) {
		f.ipify.Add(1)
		fmt.Fprint(w, `{"ip":"203.0.113.7"}`)
	})
	mux.HandleFunc("GET /lookup/{ip}", func(w http.ResponseWriter, r *http.Request) {
		f.lookups.Add(1)
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}
		switch r.PathValue("ip") {
		case "203.0.113.7":
			fmt.Fprint(w, `{"cityName":"Lisbon","countryName":"Portugal"}`)
		default:
			fmt.Fprint(w, `{"cityName":"-","countryName":"-"}`)
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServices) locator(c cache.Cache) *Locator {
	return NewLocator(Options{
		LookupURL:   f.srv.URL + "/lookup/",
		PublicIPURL: f.srv.URL + "/ipify",
		Cache:       c,
		CacheTTL:    time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLocate_PublicIP(t *testing.T) {
	f := newFakeServices(t)

	loc := f.locator(nil).Locate(context.Background(), "203.0.113.7")
	assert.Equal(t, Location{City: "Lisbon", Country: "Portugal"}, loc)
	assert.Zero(t, f.ipify.Load())
}

func TestLocate_LocalFallsBackToPublicIP(t *testing.T) {
	for _, ip := range []string{"", "127.0.0.1", "::1", "192.168.1.4", "10.0.0.2", "garbage"} {
		t.Run(ip, func(t *testing.T) {
			f := newFakeServices(t)

			loc := f.locator(nil).Locate(context.Background(), ip)
			assert.Equal(t, "Lisbon", loc.City)
			assert.Equal(t, int32(1), f.ipify.Load())
		})
	}
}

func TestLocate_UnknownFieldsAreEmpty(t *testing.T) {
	f := newFakeServices(t)

	loc := f.locator(nil).Locate(context.Background(), "198.51.100.1")
	assert.True(t, loc.IsZero())
}

func TestLocate_FailuresAreSwallowed(t *testing.T) {
	f := newFakeServices(t)
	f.status = http.StatusTooManyRequests

	loc := f.locator(nil).Locate(context.Background(), "203.0.113.7")
	assert.True(t, loc.IsZero())
}

func TestLocate_Cached(t *testing.T) {
	f := newFakeServices(t)
	l := f.locator(cache.NewMemory())

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Portugal", l.Locate(context.Background(), "203.0.113.7").Country)
	}
	assert.Equal(t, int32(1), f.lookups.Load())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.9:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.9:1234", "198.51.100.2"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.3"}, "10.0.0.9:1234", "198.51.100.3"},
		{"remote addr", nil, "198.51.100.4:5555", "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/detect-city", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal(""))
	assert.True(t, IsLocal("127.0.0.1"))
	assert.True(t, IsLocal("::ffff:192.168.0.1"))
	assert.True(t, IsLocal("fe80::1"))
	assert.False(t, IsLocal("8.8.8.8"))
	assert.False(t, IsLocal("2001:4860:4860::8888"))
}
