package resolve

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestParseMethodDefaultsToSystem(t *testing.T) {
	cases := map[string]Method{
		"system":     MethodSystem,
		"resolv":     MethodResolv,
		"google":     MethodGoogle,
		"cloudflare": MethodCloudflare,
		"bogus":      MethodSystem,
		"":           MethodSystem,
	}
	for in, want := range cases {
		if got := ParseMethod(in); got != want {
			t.Errorf("ParseMethod(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMethodString(t *testing.T) {
	if MethodGoogle.String() != "google" {
		t.Fatalf("String() = %q, want google", MethodGoogle.String())
	}
}

func TestNoopLookupAlwaysEmpty(t *testing.T) {
	var r Resolver = Noop{}
	if got := r.Lookup(context.Background(), net.ParseIP("203.0.113.1")); got != "" {
		t.Fatalf("Noop.Lookup = %q, want empty", got)
	}
}

func TestTrimTrailingDot(t *testing.T) {
	if got := trimTrailingDot("example.com."); got != "example.com" {
		t.Fatalf("trimTrailingDot = %q, want example.com", got)
	}
	if got := trimTrailingDot("example.com"); got != "example.com" {
		t.Fatalf("trimTrailingDot = %q, want example.com", got)
	}
}

// TestSystemResolverCachesLookups exercises the cache path without
// depending on network access: looking up an address with no PTR
// record still populates the cache with the empty-string result, equal
// to what the lookup returned.
func TestSystemResolverCachesLookups(t *testing.T) {
	r := New(MethodSystem, 50*time.Millisecond).(*systemResolver)
	addr := net.ParseIP("192.0.2.1") // TEST-NET-1, no PTR by construction

	ctx := context.Background()
	first := r.Lookup(ctx, addr)

	r.mu.Lock()
	cached, ok := r.cache[addr.String()]
	r.mu.Unlock()
	if !ok {
		t.Fatal("Lookup did not populate the cache")
	}
	if cached != first {
		t.Fatalf("cached = %q, first lookup = %q", cached, first)
	}
}
