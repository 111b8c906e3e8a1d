package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "ko-KR", want: "ko_kr"},
		{in: " EN_us ", want: "en_us"},
		{in: "Korean", want: "korean"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("locale code", func(t *testing.T) {
		got := Resolve("ko_kr")
		if got.Code != "ko_kr" || got.Name != "한국어" || got.English != "Korean" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("hyphenated uppercase code", func(t *testing.T) {
		got := Resolve("ko-KR")
		if got.Code != "ko_kr" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("two-letter alias", func(t *testing.T) {
		got := Resolve("ko")
		if got.Code != "ko_kr" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("english name", func(t *testing.T) {
		got := Resolve("Korean")
		if got.Code != "ko_kr" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("native name", func(t *testing.T) {
		got := Resolve("한국어")
		if got.Code != "ko_kr" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("tlh-KX")
		if got.Code != "tlh_kx" || got.Name != "tlh-KX" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestName(t *testing.T) {
	if got := Name("ru_ru"); got != "Русский" {
		t.Fatalf("Name(ru_ru) = %q", got)
	}
	if got := Name("xx_yy"); got != "xx_yy" {
		t.Fatalf("Name(unknown) = %q, want the code itself", got)
	}
}
