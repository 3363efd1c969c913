package keys

import (
	"regexp"
	"strings"
	"testing"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := DocKey("regions", "https://cdn.example.com/idx/USA/FL/index.json")
	k2 := DocKey("regions", "https://cdn.example.com/idx/USA/FL/index.json")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestNormalization_HostCaseAndFragmentIgnored(t *testing.T) {
	k1 := DocKey("regions", "https://CDN.Example.com/idx/USA/index.json#top")
	k2 := DocKey("regions", " https://cdn.example.com/idx/USA/index.json ")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9:_=.\-]+$`).MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
	if !strings.HasPrefix(k1, "regions:doc:idx:USA:index.json:u=") {
		t.Fatalf("unexpected layout: %s", k1)
	}
}

func TestDifference_PathCaseMatters(t *testing.T) {
	k1 := DocKey("regions", "https://cdn.example.com/idx/usa/index.json")
	k2 := DocKey("regions", "https://cdn.example.com/idx/USA/index.json")
	if k1 == k2 {
		t.Fatalf("different paths must produce different keys")
	}
}

func TestTruncation_LongPathsKeepHashSuffix(t *testing.T) {
	long := "https://cdn.example.com/" + strings.Repeat("segment/", 60) + "index.json"
	k := DocKey("", long)
	if !strings.HasPrefix(k, "regions:doc:") {
		t.Fatalf("empty namespace must default; got %s", k)
	}
	if !regexp.MustCompile(`:u=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing hash suffix: %s", k)
	}
	if len(k) > len("regions:doc:")+160+len(":u=")+16 {
		t.Fatalf("key not truncated: len=%d", len(k))
	}
}

func TestNonASCII_IsReplaced(t *testing.T) {
	k := DocKey("regions", "https://cdn.example.com/idx/FRA/Île-de-France/index.json")
	if strings.ContainsRune(k, 'Î') {
		t.Fatalf("non-ascii rune leaked into key: %s", k)
	}
}
