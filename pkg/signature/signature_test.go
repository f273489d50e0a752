package signature

import (
	"testing"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main","commits":[]}`)
	secret := "It's a Secret to Everybody"
	cases := []struct {
		name   string
		body   []byte
		header string
		secret string
		want   Outcome
	}{
		{
			name:   "OK valid",
			body:   body,
			header: Sign(body, secret),
			secret: secret,
			want:   Valid,
		},
		{
			name:   "OK known vector",
			body:   []byte("Hello, World!"),
			header: "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17",
			secret: "It's a Secret to Everybody",
			want:   Valid,
		},
		{
			name:   "NG unconfigured secret",
			body:   body,
			header: Sign(body, secret),
			secret: "",
			want:   Unconfigured,
		},
		{
			name:   "NG unconfigured secret without header",
			body:   body,
			secret: "",
			want:   Unconfigured,
		},
		{
			name:   "NG missing header",
			body:   body,
			secret: secret,
			want:   Invalid,
		},
		{
			name:   "NG wrong secret",
			body:   body,
			header: Sign(body, "other"),
			secret: secret,
			want:   Invalid,
		},
		{
			name:   "NG missing prefix",
			body:   body,
			header: Sign(body, secret)[len(prefix):],
			secret: secret,
			want:   Invalid,
		},
		{
			name:   "NG sha1 header",
			body:   body,
			header: "sha1=0123456789abcdef0123456789abcdef01234567",
			secret: secret,
			want:   Invalid,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Verify(c.body, c.header, c.secret); got != c.want {
				t.Fatalf("Unexpected outcome: want=%v, got=%v", c.want, got)
			}
		})
	}
}

func TestVerifyReflexive(t *testing.T) {
	bodies := [][]byte{
		{},
		[]byte("a"),
		[]byte(`{"commits":[{"id":"abc"}]}`),
		{0x00, 0xff, 0x10, 0x80},
	}
	secrets := []string{"s", "another secret", "日本語のシークレット"}
	for _, b := range bodies {
		for _, s := range secrets {
			if got := Verify(b, Sign(b, s), s); got != Valid {
				t.Fatalf("Unexpected outcome: body=%q, secret=%q, got=%v", b, s, got)
			}
		}
	}
}

func TestVerifySingleBitMutation(t *testing.T) {
	body := []byte(`{"repository":{"full_name":"org/repo"},"commits":[]}`)
	secret := "webhook-secret"
	header := Sign(body, secret)
	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(body))
			copy(mutated, body)
			mutated[i] ^= 1 << bit
			if got := Verify(mutated, header, secret); got != Invalid {
				t.Fatalf("Unexpected outcome for mutation at byte=%d bit=%d: got=%v", i, bit, got)
			}
		}
	}
}
