package hashing

import "testing"

func TestDigestDeterministic(t *testing.T) {
	first := Digest("senior go developer, 7 years")
	second := Digest("senior go developer, 7 years")

	if first != second {
		t.Fatalf("digest is not stable: %s != %s", first, second)
	}

	if len(first) != DigestLength {
		t.Fatalf("expected digest length %d, got %d", DigestLength, len(first))
	}
}

func TestDigestEmptyString(t *testing.T) {
	// SHA-256 of the empty string is a fixed, well-known value.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	if got := Digest(""); got != want {
		t.Fatalf("unexpected empty-string digest: %s", got)
	}
}

func TestDigestDistinguishesContent(t *testing.T) {
	if Digest("resume A") == Digest("resume B") {
		t.Fatalf("different texts produced the same digest")
	}
}
